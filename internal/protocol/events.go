package protocol

// Inbound event names.
const (
	EvServiceRequest    = "service-request"
	EvResponderLocation = "responder-location"
	EvResponderOnline   = "responder-online"
	EvResponderOffline  = "responder-offline"
	EvAcceptService     = "accept-service"
	EvUserConfirmation  = "user-confirmation"
	EvOTPVerified       = "otp-verified"
	EvEndJob            = "end-job"
	EvJoinRoom          = "join-room"
	EvSendMessage       = "send-message"
	EvJoinCall          = "join-call"
	EvCallUser          = "call-user"
	EvSignal            = "signal"
	EvCallAccepted      = "call-accepted"
	EvCallRejected      = "call-rejected"
	EvCallEnded         = "call-ended"
)

// Outbound event names.
const (
	EvCredentialsRenewed  = "credentials-renewed"
	EvCandidatesAvailable = "candidates-available"
	EvNoCandidates        = "no-candidates"
	EvOfferAvailable      = "offer-available"
	EvJobConfirmation     = "job-confirmation"
	EvJobConfirmed        = "job-confirmed"
	EvStartJob            = "start-job"
	EvJobEnded            = "job-ended"
	EvNewMessage          = "new-message"
	EvIncomingCall        = "incoming-call"
	EvCallEndedSignal     = "call-ended-signal"
	EvAbandoned           = "engagement-abandoned"
	EvError               = "error"
)
