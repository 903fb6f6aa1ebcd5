package postprocess

import (
	"math"
)

// quickSortIndiceInverse is a quick sort algorithm that sorts the objProbs
// vector in descending order and synchronously updates the indices vector to
// track the reordering of elements
func quickSortIndiceInverse(input []float32, left int, right int, indices []int) int {

	var key float32
	var keyIndex int

	low := left
	high := right

	if left < right {
		keyIndex = indices[left]
		key = input[left]

		for low < high {
			for low < high && input[high] <= key {
				high--
			}

			input[low] = input[high]
			indices[low] = indices[high]

			for low < high && input[low] >= key {
				low++
			}

			input[high] = input[low]
			indices[high] = indices[low]
		}

		input[low] = key
		indices[low] = keyIndex

		quickSortIndiceInverse(input, left, low-1, indices)
		quickSortIndiceInverse(input, low+1, right, indices)
	}

	return low
}

// nms implements greedy Non-Maximum Suppression over boxes stored as
// [x1,y1,x2,y2] quads.  order must be sorted by descending score, suppressed
// entries are set to -1.
func nms(validCount int, boxes []float32, order []int, threshold float32) {

	for i := 0; i < validCount; i++ {

		if order[i] == -1 {
			continue
		}

		n := order[i]

		for j := i + 1; j < validCount; j++ {
			m := order[j]

			if m == -1 {
				continue
			}

			iou := calculateOverlap(
				boxes[n*4+0], boxes[n*4+1], boxes[n*4+2], boxes[n*4+3],
				boxes[m*4+0], boxes[m*4+1], boxes[m*4+2], boxes[m*4+3],
			)

			if iou > threshold {
				order[j] = -1
			}
		}
	}
}

// calculateOverlap works out the Intersection of Union (IoU) value of two
// boxes in continuous coordinates
func calculateOverlap(xmin0, ymin0, xmax0, ymax0, xmin1, ymin1,
	xmax1, ymax1 float32) float32 {

	w := math.Max(0.0, math.Min(float64(xmax0), float64(xmax1))-math.Max(float64(xmin0), float64(xmin1)))
	h := math.Max(0.0, math.Min(float64(ymax0), float64(ymax1))-math.Max(float64(ymin0), float64(ymin1)))
	intersection := float32(w * h)

	area0 := (xmax0 - xmin0) * (ymax0 - ymin0)
	area1 := (xmax1 - xmin1) * (ymax1 - ymin1)

	union := area0 + area1 - intersection

	if union <= 0 {
		return 0.0
	}

	return intersection / union
}

// sigmoid is the logistic function
func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
