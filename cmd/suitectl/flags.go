package main

import (
	"fmt"

	"github.com/spf13/pflag"
)

// mustBind binds a flag to a config key; flags win over file and env values
// only when set.
func mustBind(key string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for %s is not defined", key))
	}

	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}
