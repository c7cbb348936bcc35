package version

// Version is the current version of the CallInsight server
const Version = "0.0.12"

// UserAgent returns the User-Agent string for HTTP requests
func UserAgent() string {
	return "callinsight/" + Version
}
