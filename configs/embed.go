// Package configs embeds the configuration template shipped with devmind.
//
// The template is embedded at build time so `devmind init` can generate a
// commented starter config without any files installed alongside the binary.
// To change the template, edit config.example.yaml and rebuild.
package configs

import _ "embed"

// ConfigTemplate is the commented starter configuration written by
// `devmind init` as .devmind.yaml in the project root. Every value in it is
// the default, so a freshly generated file changes nothing until edited.
//
//go:embed config.example.yaml
var ConfigTemplate string
