package utils

// PartitionMap splits a contiguous index range into ParallelDegree
// buckets with a maximum imbalance of one item. It is the ownership map
// used to distribute points and edges across goroutines: each bucket is
// worked by exactly one goroutine per pass.
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of each bucket
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	if ParallelDegree < 1 {
		ParallelDegree = 1
	}
	if ParallelDegree > maxIndex && maxIndex > 0 {
		ParallelDegree = maxIndex
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.split1D(n)
	}
	return
}

func (pm *PartitionMap) split1D(bn int) (bucket [2]int) {
	var (
		size             = pm.MaxIndex / pm.ParallelDegree
		remainder        = pm.MaxIndex % pm.ParallelDegree
		startAdd, endAdd int
	)
	if remainder != 0 { // spread the remainder over the first buckets evenly
		if bn+1 > remainder {
			startAdd = remainder
		} else {
			startAdd = bn
			endAdd = 1
		}
	}
	bucket[0] = bn*size + startAdd
	bucket[1] = bucket[0] + size + endAdd
	return
}

func (pm *PartitionMap) GetBucketRange(bn int) (min, max int) {
	min, max = pm.Partitions[bn][0], pm.Partitions[bn][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) int {
	return pm.Partitions[bn][1] - pm.Partitions[bn][0]
}

// GetBucket locates the bucket owning a global index.
func (pm *PartitionMap) GetBucket(index int) (bn int) {
	bn = pm.ParallelDegree * index / pm.MaxIndex
	for pm.Partitions[bn][0] > index {
		bn--
	}
	for pm.Partitions[bn][1] <= index {
		bn++
	}
	return
}
