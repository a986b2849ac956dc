// Package zoom issues Zoom Meeting SDK join credentials.
//
// A join credential binds an SDK key, a meeting number, a millisecond
// timestamp and a role code under an HMAC-SHA256 digest keyed by the SDK
// secret. The Issuer is the only holder of that secret; it never leaves the
// process and renders as a redacted value when printed or logged.
//
// Token layout (standard padded base64 at every step):
//
//	msg    = base64(sdkKey + meetingNumber + timestamp + role)
//	digest = base64(HMAC-SHA256(secret, msg))
//	token  = base64(sdkKey "." meetingNumber "." timestamp "." role "." digest)
//
// The timestamp is captured fresh for every call and shifted back by the
// configured clock skew so that slightly slow verifier clocks still accept it.
//
// Example usage:
//
//	cfg := zoom.DefaultConfig()
//	cfg.SDKKey = os.Getenv("ZOOM_SDK_KEY")
//	cfg.SDKSecret = zoom.NewSecret(os.Getenv("ZOOM_SDK_SECRET"))
//
//	issuer, err := zoom.NewIssuer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cred, err := issuer.Issue("1234567890", session.RoleParticipant)
package zoom
