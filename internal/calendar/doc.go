// Package calendar provisions Google Meet links by creating Google Calendar
// events with an attached conference.
//
// A Provisioner holds no caller credentials. Every call to Provision builds
// a Calendar client authorized with the caller's OAuth token, inserts an
// event with conferenceDataVersion=1 and reads the join URL from the video
// entry point of the response. Conferences that Google is still creating
// are re-read a bounded number of times.
//
// Calendar API failures are mapped onto the session error taxonomy:
// 401 and 403 become UpstreamAuthError, 400 becomes InvalidRequest, and
// timeouts, throttling, 5xx and transport failures become
// UpstreamUnavailable.
//
// Example usage:
//
//	p, err := calendar.NewProvisioner(calendar.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	link, err := p.Provision(ctx, cred, calendar.LinkRequest{
//	    Start:    time.Now().Add(time.Hour),
//	    Duration: 30 * time.Minute,
//	    Summary:  "Sync",
//	})
package calendar
