package prayer

// Error codes shared by the scheduling components.
const (
	CodeLocationUnavailable          = "location_unavailable"
	CodeInvalidCoordinate            = "invalid_coordinate"
	CodeTimingUnavailable            = "timing_unavailable"
	CodeTimingParseError             = "timing_parse_error"
	CodePlaybackFailure              = "playback_failure"
	CodeNotificationPermissionDenied = "notification_permission_denied"
	CodeInvalidInput                 = "invalid_input"
)
