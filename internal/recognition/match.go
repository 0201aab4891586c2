package recognition

import (
	"AttendanceBackend/internal/entity"
	"math"

	"github.com/hupe1980/vecgo/distance"
)

// Tolerance is the largest distance at which two vectors are the same person.
const Tolerance = 0.6

// toleranceSquared is computed in float32 so a vector exactly Tolerance away
// squares to the same value as the bound.
var toleranceSquared = squared(Tolerance)

func squared(v float32) float32 { return v * v }

type Match struct {
	StudentID string
	Distance  float64
}

// Distance is the Euclidean distance between a and b. Vectors of different
// length never match and yield +Inf.
func Distance(a, b entity.FeatureVector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(float64(distance.SquaredL2(a, b)))
}

// withinTolerance reports the squared distance between face and v when it
// does not exceed Tolerance squared.
func withinTolerance(face, v entity.FeatureVector) (float32, bool) {
	if len(face) != len(v) || len(face) == 0 {
		return 0, false
	}
	d, exceeded := distance.SquaredL2Bounded(face, v, toleranceSquared)
	return d, !exceeded
}

// BestMatch reduces the roster to the student whose closest stored vector is
// nearest to face, considering only vectors within Tolerance. When two
// students tie, whichever the map yields first wins.
func BestMatch(face entity.FeatureVector, roster entity.Roster) (Match, bool) {
	var (
		bestID string
		bestSq float32
		found  bool
	)
	for studentID, known := range roster {
		for _, v := range known {
			d, ok := withinTolerance(face, v)
			if !ok {
				continue
			}
			if !found || d < bestSq {
				bestID, bestSq, found = studentID, d, true
			}
		}
	}
	if !found {
		return Match{}, false
	}
	return Match{StudentID: bestID, Distance: math.Sqrt(float64(bestSq))}, true
}
