package utils

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/fatih/structs"
	"github.com/urfave/cli/v2"
)

// GenerateFlags builds cli flags from the struct tags of the given
// option structs. Fields without a flagName tag are skipped.
func GenerateFlags(options ...interface{}) ([]cli.Flag, error) {
	flags := []cli.Flag{}

	for _, struct_ := range options {
		o := structs.New(struct_)
		for _, field := range o.Fields() {
			flagName := field.Tag("flagName")
			if flagName == "" {
				continue
			}
			envName := "WEBSHELL_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
			usage := field.Tag("flagDescribe")

			var aliases []string
			if short := field.Tag("flagSName"); short != "" {
				aliases = []string{short}
			}

			switch field.Kind() {
			case reflect.String:
				flags = append(flags, &cli.StringFlag{
					Name:    flagName,
					Aliases: aliases,
					Value:   field.Tag("default"),
					Usage:   usage,
					EnvVars: []string{envName},
				})

			case reflect.Bool:
				flags = append(flags, &cli.BoolFlag{
					Name:    flagName,
					Aliases: aliases,
					Usage:   usage,
					EnvVars: []string{envName},
				})

			case reflect.Int:
				defaultValue, err := strconv.Atoi(field.Tag("default"))
				if err != nil {
					return nil, err
				}
				flags = append(flags, &cli.IntFlag{
					Name:    flagName,
					Aliases: aliases,
					Value:   defaultValue,
					Usage:   usage,
					EnvVars: []string{envName},
				})
			}
		}
	}

	return flags, nil
}

// ApplyFlags copies flag values the user actually set on the command
// line back into the option structs.
func ApplyFlags(flags []cli.Flag, c *cli.Context, options ...interface{}) {
	for _, struct_ := range options {
		o := structs.New(struct_)
		for _, field := range o.Fields() {
			flagName := field.Tag("flagName")
			if flagName == "" {
				continue
			}
			if !c.IsSet(flagName) {
				continue
			}

			var val interface{}
			switch field.Kind() {
			case reflect.String:
				val = c.String(flagName)
			case reflect.Bool:
				val = c.Bool(flagName)
			case reflect.Int:
				val = c.Int(flagName)
			default:
				continue
			}
			field.Set(val)
		}
	}
}
