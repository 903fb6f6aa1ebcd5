package worker

import (
	"fmt"

	"github.com/swdee/go-crowdlabel/result"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// Models are the refinement model variants a refiner worker accepts
var Models = []string{"vit_b", "vit_l", "vit_h"}

// RefinerCommand returns the command line that starts a refiner worker
// binary with the given checkpoint, model variant and device
func RefinerCommand(binary, checkpoint, model, device string) []string {
	return []string{binary,
		"--checkpoint", checkpoint,
		"--model", model,
		"--device", device,
	}
}

// Refiner produces box prompted silhouettes using a worker process
type Refiner struct {
	client *Client
}

// NewRefiner returns a Refiner sending requests through client
func NewRefiner(client *Client) *Refiner {
	return &Refiner{client: client}
}

// Refine asks the worker for candidate masks of the person in box and
// returns the highest scoring one, binarized
func (r *Refiner) Refine(frame gocv.Mat, box result.Box) (*result.Mask, error) {

	data, err := frameBytes(frame)

	if err != nil {
		return nil, err
	}

	req := &RefineRequest{
		Type:   TypeRefine,
		Width:  frame.Cols(),
		Height: frame.Rows(),
		Frame:  data,
		Box:    box.Array(),
	}

	var resp RefineResponse

	if err := r.client.call(req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Masks) == 0 {
		return nil, fmt.Errorf("%w: no candidate masks", ErrInvalidResponse)
	}

	if len(resp.Scores) != len(resp.Masks) {
		return nil, fmt.Errorf("%w: %d masks with %d scores", ErrInvalidResponse,
			len(resp.Masks), len(resp.Scores))
	}

	scores := make([]float64, len(resp.Scores))

	for i, s := range resp.Scores {
		scores[i] = float64(s)
	}

	best := floats.MaxIdx(scores)
	raw, err := resp.Masks[best].Decode()

	if err != nil {
		return nil, fmt.Errorf("%w: mask %d: %w", ErrInvalidResponse, best, err)
	}

	return raw.Binarize(), nil
}
