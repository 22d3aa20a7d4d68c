package corestate

// CoreState is the basic meta-information of a running client: who it is, since when,
// and which bootstrap stage it has reached.
type CoreState struct {
	InstanceID        string
	InstanceIDDirName string

	StartTimestampUnix int64

	BinName string
	Version string

	Stage Stage

	MetaDir string
	RunDir  string
}
