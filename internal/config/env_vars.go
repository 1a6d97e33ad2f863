package config

type EnvVars struct {
	AppName     string `env:"APP_NAME"     envDefault:"Auth Session"`
	Env         string `env:"ENV"          envDefault:"DEV"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	DataFolder  string `env:"FOLDER"       envDefault:"./data"`
	AccountName string `env:"ACCOUNT_NAME"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

// GetLogLevel is a zerolog level name: trace, debug, info, warn or error.
func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetDataFolder() string {
	return e.DataFolder
}

// GetAccountName is the account sessions are opened for when none is given on the command line.
func (e EnvVars) GetAccountName() string {
	return e.AccountName
}
