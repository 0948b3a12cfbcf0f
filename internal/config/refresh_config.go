package config

import "time"

const (
	SafetyMarginVar        = "REFRESH_SAFETY_MARGIN"
	RequestTimeoutVar      = "REFRESH_REQUEST_TIMEOUT"
	RetryAttemptsVar       = "REFRESH_RETRY_ATTEMPTS"
	RetryDelayVar          = "REFRESH_RETRY_DELAY"
	MinRescheduleDelayVar  = "REFRESH_MIN_RESCHEDULE_DELAY"
	defaultSafetyMargin    = 2 * time.Minute
	defaultRequestTimeout  = 10 * time.Second
	defaultRetryDelay      = 2 * time.Second
	defaultRescheduleDelay = 30 * time.Second
)

type RefreshConfig interface {
	GetSafetyMargin() time.Duration
	GetRequestTimeout() time.Duration
	GetRetryAttempts() int
	GetRetryDelay() time.Duration
	GetMinRescheduleDelay() time.Duration
}

type Refresh struct{}

var _ RefreshConfig = Refresh{}

// GetSafetyMargin is how long before access token expiry the renewal is attempted
func (Refresh) GetSafetyMargin() time.Duration {
	return GetDuration(SafetyMarginVar, defaultSafetyMargin)
}

func (Refresh) GetRequestTimeout() time.Duration {
	return GetDuration(RequestTimeoutVar, defaultRequestTimeout)
}

// GetRetryAttempts is the number of refresh calls made per renewal, 1 disables retrying
func (Refresh) GetRetryAttempts() int {
	attempts := GetInt(RetryAttemptsVar, 1)
	if attempts < 1 {
		return 1
	}
	return attempts
}

func (Refresh) GetRetryDelay() time.Duration {
	return GetDuration(RetryDelayVar, defaultRetryDelay)
}

func (Refresh) GetMinRescheduleDelay() time.Duration {
	return GetDuration(MinRescheduleDelayVar, defaultRescheduleDelay)
}
