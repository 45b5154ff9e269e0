package util

import (
	"os"

	"github.com/evergreen-ci/utility"
	"github.com/pkg/errors"
)

// ReadJSONFile decodes the JSON file at path into target.
func ReadJSONFile(path string, target interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "reading '%s'", path)
	}

	return errors.Wrapf(utility.ReadJSON(f, target), "problem parsing json from file %s", path)
}
