package build

var (
	Name    = "scandirx"
	Version = "v0.0.1+dev"
)
