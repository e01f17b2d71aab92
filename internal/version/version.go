package version

// Version is set at build time: go build -ldflags "-X mkwab/internal/version.Version=x.y.z"
var Version = "dev"
