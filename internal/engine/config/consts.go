package config

// ClientVersion is the version of the client. It can be set by the build system or manually.
// If not set, it will return "v0.0.0-none" by default
var ClientVersion string

// EnvPrefix is the prefix of every environment variable read by the compositor.
var EnvPrefix string = "CL"

// CredentialsSection is the INI section holding the application keys.
var CredentialsSection string = "cortex"

// StatusRoute and MetricsRoute are the routes of the local status server.
var (
	StatusRoute  string = "/status"
	MetricsRoute string = "/metrics"
)

var MetaDir string = "./.meta"

func init() {
	if ClientVersion == "" {
		ClientVersion = "v0.0.0-none"
	}
}
