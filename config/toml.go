package config

import (
	"bytes"
	_ "embed"
	"os"
	"text/template"

	cmtconfig "github.com/cometbft/cometbft/config"
)

var appTemplate *template.Template

func init() {
	var err error
	if appTemplate, err = template.New("appConfigTemplate").Parse(defaultAppTemplate); err != nil {
		panic(err)
	}
}

// WriteConfigFile writes the cometbft sections followed by the [app] table.
func WriteConfigFile(configFilePath string, config *Config) error {
	cmtconfig.WriteConfigFile(configFilePath, config.Config)

	var buffer bytes.Buffer
	if err := appTemplate.Execute(&buffer, config.App); err != nil {
		return err
	}
	f, err := os.OpenFile(configFilePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(buffer.Bytes())
	return err
}

// Keep in sync with the mapstructure tags of AppConfig.
//
//go:embed app.toml.tpl
var defaultAppTemplate string
