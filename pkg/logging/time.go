package logging

import "time"

// nowUTC renders the current instant the way original_source's
// getTimeUTC did: "%Y-%m-%d %H:%M:%S UTC".
func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05") + " UTC"
}
