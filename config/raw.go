package config

import (
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-cache-admin/types"
)

func toRawData(config *types.ServiceConfig) map[string]interface{} {
	data := make(map[string]interface{})

	configBytes, err := yaml.Marshal(config)
	if err != nil {
		return data
	}

	if err := yaml.Unmarshal(configBytes, &data); err != nil {
		return make(map[string]interface{})
	}

	return data
}
