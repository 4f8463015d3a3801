package detect

const componentName = "detect"

const (
	defaultDivergenceThreshold = 0.3

	// minDivergenceItems is the smallest cluster a divergence check makes
	// sense for.
	minDivergenceItems = 3

	// cosineEpsilon guards the norm product against division by zero.
	cosineEpsilon = 1e-10

	spikeWindowHours  = 6
	spikeBaselineDays = 7
	spikeFactor       = 3

	shiftWindowHours = 24
	shiftThreshold   = 0.5

	surgeWindowHours = 6
	surgeMinCount    = 10
	surgeScanLimit   = 1000

	hoursPerDay = 24
)

const (
	// AnomalyVolumeSpike flags a cluster growing much faster than its
	// weekly baseline.
	AnomalyVolumeSpike = "volume_spike"
	// AnomalySentimentShift flags a cluster whose mean sentiment moved
	// sharply day over day.
	AnomalySentimentShift = "sentiment_shift"
	// AnomalyEntitySurge flags an entity suddenly appearing across many
	// items.
	AnomalyEntitySurge = "entity_surge"
)

const (
	logKeyComponent   = "component"
	logKeyClusterID   = "cluster_id"
	logKeyDivergences = "divergences"
	logKeyAnomalies   = "anomalies"
)
