/*
Package resilience guards the script host with a circuit breaker.

After ReadyToTrip sees enough failures the breaker opens, and fetches fail
fast with ErrCircuitOpen until Timeout passes. It then lets MaxRequests
trial fetches through half-open and closes again once that many succeed in
a row.

	Closed --[ReadyToTrip]-> Open --[Timeout]-> Half-Open --[MaxRequests successes]-> Closed
	                                                |
	                                            [failure] -> Open

IsSuccessful classifies errors, so a missing paste or an oversized body
counts as a healthy answer from the upstream:

	breaker := resilience.New("script-fetch", resilience.Settings{
		Timeout:      30 * time.Second,
		IsSuccessful: countsAsHealthy,
	})
	body, err := resilience.Do(breaker, func() (string, error) {
		return fetch(ctx, hash)
	})
*/
package resilience
