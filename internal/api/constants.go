package api

const componentName = "api"

const (
	clusterItemLimit = 50

	defaultItemLimit = 50
	maxItemLimit     = 200

	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

const (
	logKeyComponent = "component"
	logKeyOp        = "op"
)
