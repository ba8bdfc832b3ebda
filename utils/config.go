package utils

import (
	"os"

	"github.com/pkg/errors"
	"github.com/yudai/hcl"

	"webshell/pkg/homedir"
)

// ApplyConfigFile decodes an HCL config file into the given option
// structs.
func ApplyConfigFile(filePath string, options ...interface{}) error {
	filePath, err := homedir.Expand(filePath)
	if err != nil {
		return err
	}

	fileString, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	for _, object := range options {
		if err := hcl.Decode(object, string(fileString)); err != nil {
			return errors.Wrapf(err, "failed to decode configuration file `%s`", filePath)
		}
	}

	return nil
}
