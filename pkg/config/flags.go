package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BindFlag binds an already-registered cobra flag to a viper key.
// Call it after InitViper to connect the flag to the precedence chain
// (flag > env > config file > default); a flag the user did not set falls
// through to the lower layers. Unknown flag names are skipped.
func BindFlag(v *viper.Viper, cmd *cobra.Command, flagName, viperKey string) {
	f := cmd.Flags().Lookup(flagName)
	if f == nil {
		return
	}

	_ = v.BindPFlag(viperKey, f)
}
