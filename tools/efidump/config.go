// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "EFIDUMP"

// default EFI_MEMORY_DESCRIPTOR stride reported by most firmware
const defaultDescriptorSize = 48

type config struct {
	DescriptorSize int  `mapstructure:"descriptor_size"`
	E820           bool `mapstructure:"e820"`
}

// loadConfig reads the optional configuration file, settings are resolved
// from flags first, then EFIDUMP_ environment variables, then the file.
func loadConfig(v *viper.Viper, path string) (c *config, err error) {
	v.SetDefault("descriptor_size", defaultDescriptorSize)
	v.SetDefault("e820", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("efidump")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.efidump")
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError

		if !errors.As(err, &notFound) {
			return
		}
	}

	c = &config{}
	err = v.Unmarshal(c)

	return
}
