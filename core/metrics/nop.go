package metrics

// Nop implementations back every instrument when no metrics backend is
// configured; the dispatchers and the actor runtime instrument
// unconditionally and rely on these discarding the observations.

type nopCounter struct{}

func (nopCounter) Inc()        {}
func (nopCounter) Add(float64) {}

type nopGauge struct{}

func (nopGauge) Set(float64) {}
func (nopGauge) Inc()        {}
func (nopGauge) Dec()        {}
func (nopGauge) Add(float64) {}

type nopHistogram struct{}

func (nopHistogram) Observe(float64) {}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopCounter returns a Counter that discards increments.
func NopCounter() Counter { return nopCounter{} }

// NopGauge returns a Gauge that discards updates.
func NopGauge() Gauge { return nopGauge{} }

// NopHistogram returns a Histogram that discards observations.
func NopHistogram() Histogram { return nopHistogram{} }

// NopTimer returns a Timer that discards the elapsed time.
func NopTimer() Timer { return nopTimer{} }

// NopTimerFunc returns a TimerFunc producing discarding timers.
func NopTimerFunc() TimerFunc { return func() Timer { return nopTimer{} } }
