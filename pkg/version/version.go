package version

// Set with -ldflags "-X github.com/devicedata/datacollector/pkg/version.Version=..." at build time.
var (
	Version   = "1.0"
	GitCommit = "unknown"
)

// Product is the name reported to remote collectors.
const Product = "DataCollector"

// UserAgent returns the User-Agent header value sent with every delivery.
func UserAgent() string {
	return Product + "/" + Version
}
