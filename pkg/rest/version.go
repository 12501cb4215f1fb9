package rest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is the current version of the client library.
const Version = "1.0.0"

var version = semver.MustParse(Version)

// UserAgent returns the User-Agent sent with every request unless the caller sets one.
// Only the major and minor components are advertised.
func UserAgent() string {
	return fmt.Sprintf("tansive/restclient/v%d.%d", version.Major(), version.Minor())
}
