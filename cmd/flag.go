package cmd

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// FlagBuilder defines one flag on a set of commands and binds it to viper and the environment
type FlagBuilder struct {
	commands []*cobra.Command
	key      string
}

// NewFlagBuilder creates a new FlagBuilder for the given commands
func NewFlagBuilder(commands ...*cobra.Command) *FlagBuilder {
	return &FlagBuilder{commands: commands}
}

// AddCommand adds a command the flags are defined on
func (fb *FlagBuilder) AddCommand(command *cobra.Command) *FlagBuilder {
	fb.commands = append(fb.commands, command)
	return fb
}

// Concat combines flag builders
func (fb *FlagBuilder) Concat(builders ...*FlagBuilder) *FlagBuilder {
	result := NewFlagBuilder(fb.commands...)
	for _, builder := range builders {
		result.commands = append(result.commands, builder.commands...)
	}
	return result
}

// Flag resets the builder so the next flag can be defined
func (fb *FlagBuilder) Flag() *FlagBuilder {
	fb.key = ""
	return fb
}

// SetKey sets the key shared by the following calls
func (fb *FlagBuilder) SetKey(key string) *FlagBuilder {
	if fb.key != "" {
		Must(fmt.Errorf("key has already been set to '%s' cannot set to '%s' try calling .Flag() first", fb.key, key))
	}
	fb.key = key
	return fb
}

// String attaches a string flag to the commands
func (fb *FlagBuilder) String(key string, defaultValue string, description string) *FlagBuilder {
	return fb.SetKey(key).
		loopCommands(func(command *cobra.Command) {
			command.Flags().String(key, defaultValue, description)
		})
}

// StringSlice attaches a string slice flag to the commands
func (fb *FlagBuilder) StringSlice(key string, defaultValue []string, description string) *FlagBuilder {
	return fb.SetKey(key).
		loopCommands(func(command *cobra.Command) {
			command.Flags().StringSlice(key, defaultValue, description)
		})
}

// Int attaches an int flag to the commands
func (fb *FlagBuilder) Int(key string, defaultValue int, description string) *FlagBuilder {
	return fb.SetKey(key).
		loopCommands(func(command *cobra.Command) {
			command.Flags().Int(key, defaultValue, description)
		})
}

// Bool attaches a bool flag to the commands
func (fb *FlagBuilder) Bool(key string, defaultValue bool, description string) *FlagBuilder {
	return fb.SetKey(key).
		loopCommands(func(command *cobra.Command) {
			command.Flags().Bool(key, defaultValue, description)
		})
}

// Duration attaches a duration flag to the commands
func (fb *FlagBuilder) Duration(key string, defaultValue time.Duration, description string) *FlagBuilder {
	return fb.SetKey(key).
		loopCommands(func(command *cobra.Command) {
			command.Flags().Duration(key, defaultValue, description)
		})
}

// Bind binds the flag to its viper key
func (fb *FlagBuilder) Bind() *FlagBuilder {
	return fb.loopCommands(func(command *cobra.Command) {
		Must(viper.BindPFlag(fb.key, command.Flags().Lookup(fb.key)))
	})
}

// Env binds the viper key to an environment variable
func (fb *FlagBuilder) Env(env string) *FlagBuilder {
	Must(viper.BindEnv(fb.key, env))
	return fb
}

// Require requires the flag
func (fb *FlagBuilder) Require() *FlagBuilder {
	return fb.loopCommands(func(command *cobra.Command) {
		Must(command.MarkFlagRequired(fb.key))
	})
}

func (fb *FlagBuilder) loopCommands(iterator func(*cobra.Command)) *FlagBuilder {
	for _, command := range fb.commands {
		iterator(command)
	}
	return fb
}

// Must helper to make sure there is no errors
func Must(err error) {
	if err != nil {
		log.Printf("failed to initialize: %s\n", err.Error())
		os.Exit(1)
	}
}
