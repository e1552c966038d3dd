package state

import "time"

const (
	// InfiniteRank is the rank of a node without a route to the root.
	InfiniteRank = Rank(0xffff)

	LollipopMaxValue       = 255
	LollipopCircularRegion = 127
	LollipopSequenceWindow = 16

	// LollipopInit is the starting value of every lollipop counter. It sits in
	// the linear region and wraps into the circular region after
	// LollipopSequenceWindow increments.
	LollipopInit = Lollipop(LollipopMaxValue - LollipopSequenceWindow + 1)

	// ZeroLifetime is used in route registrations that withdraw a path.
	ZeroLifetime = uint8(0)

	// EtxDivisor is the fixed point scale of link metrics.
	EtxDivisor = 128
)

// pool sizes
var (
	MaxInstances      = 1
	MaxDagPerInstance = 2
	MaxParents        = 16
)

// protocol defaults used when this node becomes a root
var (
	DefaultMop           = MopStoringNoMulticast
	DefaultOcp           = uint16(1) // MRHOF
	Grounded             = false
	DioIntervalMin       = uint8(12) // 2^12 ms
	DioIntervalDoublings = uint8(8)
	DioRedundancy        = uint8(10)
	DefaultMaxRankInc    = Rank(7 * 256)
	DefaultMinHopRankInc = Rank(256)
	DefaultLifetime      = uint8(0xff)
	DefaultLifetimeUnit  = uint16(0xffff)
	InitLinkMetric       = uint16(2) // in ETX units

	// MaxDioIntervalExp bounds imin+doublings, 2^32 ms is about 50 days
	MaxDioIntervalExp = 32
)

// runtime timing
var (
	RankSweepDelay            = time.Second * 4
	RouteRegistrationDelay    = time.Second * 4
	RouteRegistrationDedupTTL = time.Second * 1
	RouteRegistrationLifetime = uint8(30)
	DispatchSlowThreshold     = time.Millisecond * 4
	DefaultScenarioDuration   = time.Second * 30
)
