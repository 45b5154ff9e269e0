package operations

import (
	"context"

	"github.com/evergreen-ci/larch"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// configure builds the configuration of one invocation: the file at
// confPath, or the defaults, with the data path and repository url
// overrides applied.
func configure(confPath, dataPath, repoURL string) (*larch.Configuration, error) {
	conf := larch.NewConfiguration()
	if confPath != "" {
		var err error
		conf, err = larch.LoadConfiguration(confPath)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if dataPath != "" {
		conf.Storage.Type = larch.StorageFile
		conf.Storage.Path = dataPath
		conf.Storage.Format = ""
	}
	if repoURL != "" {
		conf.RepoURL = repoURL
	}

	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "problem setting up config")
	}

	return conf, nil
}

func configureFromContext(c *cli.Context) (*larch.Configuration, error) {
	return configure(c.GlobalString(configFlag), c.GlobalString(dataFlag), c.GlobalString(repoURLFlag))
}

// withEnvironment runs op with an environment built from the global flags
// and closes it afterwards.
func withEnvironment(ctx context.Context, c *cli.Context, op func(larch.Environment) error) error {
	conf, err := configureFromContext(c)
	if err != nil {
		return errors.WithStack(err)
	}

	env, err := larch.NewEnvironment(ctx, c.App.Name, conf)
	if err != nil {
		return errors.Wrap(err, "problem configuring environment")
	}

	err = op(env)
	if closeErr := env.Close(ctx); closeErr != nil {
		if err != nil {
			grip.Warning(message.WrapError(closeErr, message.Fields{
				"message": "problem closing environment",
			}))
			return err
		}
		return errors.Wrap(closeErr, "problem closing environment")
	}

	return err
}
