package data

import (
	"github.com/evergreen-ci/larch"
)

// DBConnector is a struct that implements all of the methods which connect
// to the service layer of larch. These methods abstract the link between
// the storage and the API layers, allowing for changes in the service
// architecture without forcing changes to the API.
type DBConnector struct {
	env larch.Environment
}

func CreateDBConnector(env larch.Environment) Connector {
	return &DBConnector{
		env: env,
	}
}
