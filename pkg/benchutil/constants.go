package benchutil

// Shared constants for benchmarks across packages.

// BenchmarkSeed is the default seed for reproducible benchmark data generation.
const BenchmarkSeed = 42

// BenchmarkSizes are record counts for quick benchmark runs.
var BenchmarkSizes = []int{100, 1000, 10000}
