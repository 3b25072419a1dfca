package forecast

import (
	"math"
	"math/rand"
)

// recurrentLayer is one Elman-style recurrent layer.
type recurrentLayer struct {
	Wx [][]float64 `json:"wx"` // input -> hidden
	Wh [][]float64 `json:"wh"` // hidden -> hidden
	B  []float64   `json:"b"`
}

func newRecurrentLayer(inputSize, hiddenSize int, rng *rand.Rand) recurrentLayer {
	return recurrentLayer{
		Wx: randomMatrix(inputSize, hiddenSize, rng),
		Wh: randomMatrix(hiddenSize, hiddenSize, rng),
		B:  randomVector(hiddenSize, rng),
	}
}

// SeqNet is a two-layer recurrent network with a scalar regression head,
// trained one-step-ahead on scaled lookback windows. Dropout masks the
// activations feeding the next layer during training only.
type SeqNet struct {
	HiddenSize   int            `json:"hidden_size"`
	L1           recurrentLayer `json:"l1"`
	L2           recurrentLayer `json:"l2"`
	Wo           []float64      `json:"wo"` // hidden -> output
	Bo           float64        `json:"bo"`
	LearningRate float64        `json:"learning_rate"`
	Dropout      float64        `json:"dropout"`
}

// NewSeqNet creates a network with small random weights.
func NewSeqNet(hiddenSize int, seed int64) *SeqNet {
	rng := rand.New(rand.NewSource(seed))
	return &SeqNet{
		HiddenSize:   hiddenSize,
		L1:           newRecurrentLayer(1, hiddenSize, rng),
		L2:           newRecurrentLayer(hiddenSize, hiddenSize, rng),
		Wo:           randomVector(hiddenSize, rng),
		Bo:           0,
		LearningRate: 0.001,
		Dropout:      0.2,
	}
}

// Predict runs one forward pass over a scaled window and returns the scaled
// next-step value. No dropout at inference.
func (n *SeqNet) Predict(window []float64) float64 {
	h1 := make([]float64, n.HiddenSize)
	h2 := make([]float64, n.HiddenSize)
	for _, x := range window {
		h1 = n.stepLayer(&n.L1, []float64{x}, h1)
		h2 = n.stepLayer(&n.L2, h1, h2)
	}
	out := n.Bo
	for j, h := range h2 {
		out += n.Wo[j] * h
	}
	return out
}

// Train fits the network on (window, target) pairs with per-sample SGD and
// full backpropagation through time. Returns the final epoch's mean squared
// error on the training split.
func (n *SeqNet) Train(windows [][]float64, targets []float64, epochs int, seed int64) float64 {
	if len(windows) == 0 || epochs <= 0 {
		return 0
	}
	rng := rand.New(rand.NewSource(seed))
	var epochLoss float64
	for epoch := 0; epoch < epochs; epoch++ {
		epochLoss = 0
		for i := range windows {
			epochLoss += n.trainSample(windows[i], targets[i], rng)
		}
		epochLoss /= float64(len(windows))
	}
	return epochLoss
}

// Loss computes mean squared error without updating weights.
func (n *SeqNet) Loss(windows [][]float64, targets []float64) float64 {
	if len(windows) == 0 {
		return 0
	}
	var sum float64
	for i := range windows {
		d := n.Predict(windows[i]) - targets[i]
		sum += d * d
	}
	return sum / float64(len(windows))
}

func (n *SeqNet) stepLayer(l *recurrentLayer, input, prev []float64) []float64 {
	out := make([]float64, n.HiddenSize)
	for j := 0; j < n.HiddenSize; j++ {
		a := l.B[j]
		for i, x := range input {
			a += l.Wx[i][j] * x
		}
		for i, h := range prev {
			a += l.Wh[i][j] * h
		}
		out[j] = math.Tanh(a)
	}
	return out
}

// trainSample runs forward with dropout, then backpropagates through time.
func (n *SeqNet) trainSample(window []float64, target float64, rng *rand.Rand) float64 {
	T := len(window)
	H := n.HiddenSize

	h1 := make([][]float64, T+1)
	h2 := make([][]float64, T+1)
	h1[0] = make([]float64, H)
	h2[0] = make([]float64, H)
	mask1 := make([][]float64, T)
	mask2 := make([][]float64, T)

	keep := 1 - n.Dropout
	for t := 0; t < T; t++ {
		h1[t+1] = n.stepLayer(&n.L1, []float64{window[t]}, h1[t])
		mask1[t] = dropoutMask(H, keep, rng)
		dropped1 := hadamard(h1[t+1], mask1[t])
		h2[t+1] = n.stepLayer(&n.L2, dropped1, h2[t])
		mask2[t] = dropoutMask(H, keep, rng)
	}

	finalDropped := hadamard(h2[T], mask2[T-1])
	pred := n.Bo
	for j := 0; j < H; j++ {
		pred += n.Wo[j] * finalDropped[j]
	}
	diff := pred - target
	loss := diff * diff

	lr := n.LearningRate
	dPred := 2 * diff

	// Output head.
	dh2 := make([]float64, H)
	for j := 0; j < H; j++ {
		dh2[j] = clipGrad(dPred * n.Wo[j] * mask2[T-1][j])
		n.Wo[j] -= lr * clipGrad(dPred*finalDropped[j])
	}
	n.Bo -= lr * clipGrad(dPred)

	dh1 := make([]float64, H)
	for t := T - 1; t >= 0; t-- {
		// Layer 2.
		da2 := make([]float64, H)
		for j := 0; j < H; j++ {
			da2[j] = dh2[j] * (1 - h2[t+1][j]*h2[t+1][j])
		}
		dropped1 := hadamard(h1[t+1], mask1[t])
		nextDH2 := make([]float64, H)
		for j := 0; j < H; j++ {
			g := clipGrad(da2[j])
			n.L2.B[j] -= lr * g
			for i := 0; i < H; i++ {
				n.L2.Wx[i][j] -= lr * clipGrad(da2[j]*dropped1[i])
				n.L2.Wh[i][j] -= lr * clipGrad(da2[j]*h2[t][i])
			}
		}
		for i := 0; i < H; i++ {
			var s float64
			for j := 0; j < H; j++ {
				s += da2[j] * n.L2.Wh[i][j]
			}
			nextDH2[i] = clipGrad(s)
		}
		for i := 0; i < H; i++ {
			var s float64
			for j := 0; j < H; j++ {
				s += da2[j] * n.L2.Wx[i][j]
			}
			dh1[i] += clipGrad(s * mask1[t][i])
		}

		// Layer 1.
		da1 := make([]float64, H)
		for j := 0; j < H; j++ {
			da1[j] = dh1[j] * (1 - h1[t+1][j]*h1[t+1][j])
		}
		nextDH1 := make([]float64, H)
		for j := 0; j < H; j++ {
			g := clipGrad(da1[j])
			n.L1.B[j] -= lr * g
			n.L1.Wx[0][j] -= lr * clipGrad(da1[j]*window[t])
			for i := 0; i < H; i++ {
				n.L1.Wh[i][j] -= lr * clipGrad(da1[j]*h1[t][i])
			}
		}
		for i := 0; i < H; i++ {
			var s float64
			for j := 0; j < H; j++ {
				s += da1[j] * n.L1.Wh[i][j]
			}
			nextDH1[i] = clipGrad(s)
		}

		dh2 = nextDH2
		dh1 = nextDH1
	}

	return loss
}

func dropoutMask(size int, keep float64, rng *rand.Rand) []float64 {
	m := make([]float64, size)
	if keep >= 1 {
		for i := range m {
			m[i] = 1
		}
		return m
	}
	for i := range m {
		if rng.Float64() < keep {
			// Inverted dropout keeps inference scale-free.
			m[i] = 1 / keep
		}
	}
	return m
}

func hadamard(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}

func clipGrad(g float64) float64 {
	const limit = 5.0
	if g > limit {
		return limit
	}
	if g < -limit {
		return -limit
	}
	if math.IsNaN(g) {
		return 0
	}
	return g
}

func randomMatrix(rows, cols int, rng *rand.Rand) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = randomVector(cols, rng)
	}
	return m
}

func randomVector(size int, rng *rand.Rand) []float64 {
	v := make([]float64, size)
	for i := range v {
		v[i] = (rng.Float64() - 0.5) * 0.1
	}
	return v
}
