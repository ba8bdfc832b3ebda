package utils

import (
	"reflect"
	"strconv"

	"github.com/fatih/structs"
	"github.com/pkg/errors"
)

// ApplyDefaultValues sets each field of the given struct to the value
// of its `default` tag.
func ApplyDefaultValues(struct_ interface{}) error {
	o := structs.New(struct_)

	for _, field := range o.Fields() {
		defaultValue := field.Tag("default")
		if defaultValue == "" {
			continue
		}

		var val interface{}
		switch field.Kind() {
		case reflect.String:
			val = defaultValue
		case reflect.Bool:
			switch defaultValue {
			case "true":
				val = true
			case "false":
				val = false
			default:
				return errors.Errorf("invalid bool expression: %v, use true/false", defaultValue)
			}
		case reflect.Int:
			intValue, err := strconv.Atoi(defaultValue)
			if err != nil {
				return errors.Wrapf(err, "invalid int expression: %v", defaultValue)
			}
			val = intValue
		default:
			continue
		}
		if err := field.Set(val); err != nil {
			return err
		}
	}
	return nil
}
