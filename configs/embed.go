// Package configs embeds the configuration template written by
// `neodb config init`.
//
// The template mirrors config.NewConfig with every key commented, so a
// fresh file documents itself. Edit neodb.example.yaml and rebuild; a test
// keeps it in step with the defaults.
package configs

import _ "embed"

// ConfigTemplate is the commented default configuration, used for both the
// user config and a project .neodb.yaml.
//
//go:embed neodb.example.yaml
var ConfigTemplate string
