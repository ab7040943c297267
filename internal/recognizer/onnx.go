package recognizer

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/disintegration/imaging"
	onnxrt "github.com/yalue/onnxruntime_go"
)

// Config holds configuration for the ONNX recognition engine.
type Config struct {
	DetModelPath string // text detection model
	RecModelPath string // text recognition model
	DictPath     string // character dictionary
	ImageHeight  int    // recognition input height
	NumThreads   int    // CPU threads per session (0 for runtime default)
	DetThreshold float32
	MaxDetSide   int // detection input is downscaled to fit this side length
	MinRegionPx  int // detected regions smaller than this are discarded
}

// DefaultConfig returns production defaults for the engine.
func DefaultConfig() Config {
	return Config{
		ImageHeight:  48,
		DetThreshold: 0.3,
		MaxDetSide:   960,
		MinRegionPx:  9,
	}
}

// ONNXEngine performs two-stage recognition with ONNX Runtime: a detection
// pass proposing text regions, then a recognition pass decoding each region.
// Not safe for concurrent use.
type ONNXEngine struct {
	cfg     Config
	det     *onnxrt.DynamicAdvancedSession
	rec     *onnxrt.DynamicAdvancedSession
	charset *Charset
}

// NewONNXEngine creates an engine; model loading is deferred to Init.
func NewONNXEngine(cfg Config) *ONNXEngine {
	if cfg.ImageHeight <= 0 {
		cfg.ImageHeight = 48
	}
	if cfg.DetThreshold <= 0 {
		cfg.DetThreshold = 0.3
	}
	if cfg.MaxDetSide <= 0 {
		cfg.MaxDetSide = 960
	}
	if cfg.MinRegionPx <= 0 {
		cfg.MinRegionPx = 9
	}
	return &ONNXEngine{cfg: cfg}
}

// Init loads the dictionary, initializes the ONNX Runtime environment and
// creates both inference sessions.
func (e *ONNXEngine) Init() error {
	for _, p := range []string{e.cfg.DetModelPath, e.cfg.RecModelPath, e.cfg.DictPath} {
		if p == "" {
			return errors.New("model and dictionary paths must be set")
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("model file not found: %s", p)
		}
	}

	charset, err := LoadCharset(e.cfg.DictPath)
	if err != nil {
		return err
	}
	e.charset = charset

	if err := setONNXLibraryPath(); err != nil {
		return fmt.Errorf("locate onnxruntime library: %w", err)
	}
	if !onnxrt.IsInitialized() {
		if err := onnxrt.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	if e.det, err = e.newSession(e.cfg.DetModelPath); err != nil {
		return fmt.Errorf("detection session: %w", err)
	}
	if e.rec, err = e.newSession(e.cfg.RecModelPath); err != nil {
		return fmt.Errorf("recognition session: %w", err)
	}
	return nil
}

func (e *ONNXEngine) newSession(modelPath string) (*onnxrt.DynamicAdvancedSession, error) {
	inputs, outputs, err := onnxrt.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("get model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 input and 1 output, got %d/%d", len(inputs), len(outputs))
	}

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer func() { _ = opts.Destroy() }()

	if e.cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(e.cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("set thread count: %w", err)
		}
	}

	return onnxrt.NewDynamicAdvancedSession(
		modelPath, []string{inputs[0].Name}, []string{outputs[0].Name}, opts)
}

// Close releases both sessions.
func (e *ONNXEngine) Close() error {
	if e.det != nil {
		_ = e.det.Destroy()
		e.det = nil
	}
	if e.rec != nil {
		_ = e.rec.Destroy()
		e.rec = nil
	}
	return nil
}

// Recognize runs detection then per-region recognition.
func (e *ONNXEngine) Recognize(img image.Image) (*RawResult, error) {
	if e.det == nil || e.rec == nil {
		return nil, errors.New("engine not initialized")
	}

	src := imaging.Clone(img)
	regions, err := e.detectRegions(src)
	if err != nil {
		return nil, err
	}
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Min.Y != regions[j].Min.Y {
			return regions[i].Min.Y < regions[j].Min.Y
		}
		return regions[i].Min.X < regions[j].Min.X
	})

	out := &RawResult{}
	for _, r := range regions {
		text, score, err := e.recognizeRegion(src, r)
		if err != nil {
			return nil, err
		}
		if text == "" {
			continue
		}
		out.Texts = append(out.Texts, text)
		out.Scores = append(out.Scores, score)
		out.Polys = append(out.Polys, []Point{
			{float64(r.Min.X), float64(r.Min.Y)},
			{float64(r.Max.X), float64(r.Min.Y)},
			{float64(r.Max.X), float64(r.Max.Y)},
			{float64(r.Min.X), float64(r.Max.Y)},
		})
		out.Angles = append(out.Angles, 0)
	}
	return out, nil
}

// detectRegions runs the detection model and extracts axis-aligned boxes from
// the probability map via connected components, mapped back to source pixels.
func (e *ONNXEngine) detectRegions(src *image.NRGBA) ([]image.Rectangle, error) {
	b := src.Bounds()
	origW, origH := b.Dx(), b.Dy()

	// Fit within MaxDetSide, snapping dimensions to multiples of 32.
	scale := 1.0
	if longest := max(origW, origH); longest > e.cfg.MaxDetSide {
		scale = float64(e.cfg.MaxDetSide) / float64(longest)
	}
	detW := snap32(int(float64(origW) * scale))
	detH := snap32(int(float64(origH) * scale))
	resized := imaging.Resize(src, detW, detH, imaging.Lanczos)

	data := normalizeNCHW(resized)
	probs, shape, err := runSession(e.det, data, []int64{1, 3, int64(detH), int64(detW)})
	if err != nil {
		return nil, err
	}
	if len(shape) < 2 {
		return nil, fmt.Errorf("unexpected detection output shape %v", shape)
	}
	mapW := int(shape[len(shape)-1])
	mapH := int(shape[len(shape)-2])
	if mapW*mapH > len(probs) {
		return nil, fmt.Errorf("detection output smaller than map %dx%d", mapW, mapH)
	}

	binary := make([]bool, mapW*mapH)
	for i := range binary {
		binary[i] = probs[i] > e.cfg.DetThreshold
	}

	boxes := connectedBoxes(binary, mapW, mapH, e.cfg.MinRegionPx)

	// Map back to source coordinates with a small margin for the shrink the
	// probability map applies to region borders.
	sx := float64(origW) / float64(mapW)
	sy := float64(origH) / float64(mapH)
	const margin = 3
	out := make([]image.Rectangle, 0, len(boxes))
	for _, box := range boxes {
		r := image.Rect(
			int(float64(box.Min.X)*sx)-margin,
			int(float64(box.Min.Y)*sy)-margin,
			int(float64(box.Max.X+1)*sx)+margin,
			int(float64(box.Max.Y+1)*sy)+margin,
		).Intersect(image.Rect(0, 0, origW, origH))
		if !r.Empty() {
			out = append(out, r)
		}
	}
	return out, nil
}

// recognizeRegion crops one region, runs the recognition model and decodes
// the CTC output greedily.
func (e *ONNXEngine) recognizeRegion(src *image.NRGBA, region image.Rectangle) (string, float64, error) {
	crop := imaging.Crop(src, region)

	h := e.cfg.ImageHeight
	w := int(float64(crop.Bounds().Dx()) * float64(h) / float64(crop.Bounds().Dy()))
	w = min(max(snap8(w), 8), 640)
	resized := imaging.Resize(crop, w, h, imaging.Lanczos)

	data := normalizeNCHW(resized)
	logits, shape, err := runSession(e.rec, data, []int64{1, 3, int64(h), int64(w)})
	if err != nil {
		return "", 0, err
	}
	if len(shape) != 3 {
		return "", 0, fmt.Errorf("unexpected recognition output shape %v", shape)
	}
	steps := int(shape[1])
	classes := int(shape[2])
	if steps*classes > len(logits) {
		return "", 0, fmt.Errorf("recognition output smaller than %dx%d", steps, classes)
	}

	return e.ctcGreedyDecode(logits, steps, classes)
}

// ctcGreedyDecode takes the argmax per timestep, collapses repeats, drops
// blanks (index 0) and maps the remainder through the charset.
func (e *ONNXEngine) ctcGreedyDecode(logits []float32, steps, classes int) (string, float64, error) {
	var text string
	var probSum float64
	var kept int
	prev := -1
	for t := range steps {
		row := logits[t*classes : (t+1)*classes]
		idx, conf := argmax(row)
		if idx != 0 && idx != prev {
			text += e.charset.Token(idx)
			probSum += float64(conf)
			kept++
		}
		prev = idx
	}
	if kept == 0 {
		return "", 0, nil
	}
	return text, probSum / float64(kept), nil
}

func argmax(v []float32) (int, float32) {
	idx, best := 0, v[0]
	for i, x := range v[1:] {
		if x > best {
			best = x
			idx = i + 1
		}
	}
	return idx, best
}

// normalizeNCHW converts to a [1,3,H,W] tensor with (v/255 - 0.5) / 0.5
// scaling per channel.
func normalizeNCHW(img *image.NRGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, 3*w*h)
	for y := range h {
		for x := range w {
			base := y*img.Stride + x*4
			for c := range 3 {
				v := float32(img.Pix[base+c]) / 255.0
				data[c*w*h+y*w+x] = (v - 0.5) / 0.5
			}
		}
	}
	return data
}

func runSession(sess *onnxrt.DynamicAdvancedSession, data []float32, shape []int64) ([]float32, []int64, error) {
	input, err := onnxrt.NewTensor(onnxrt.NewShape(shape...), data)
	if err != nil {
		return nil, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := sess.Run([]onnxrt.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("run session: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return nil, nil, errors.New("unexpected output tensor type")
	}
	raw := tensor.GetData()
	out := make([]float32, len(raw))
	copy(out, raw)
	return out, tensor.GetShape(), nil
}

// connectedBoxes finds bounding boxes of 4-connected components at least
// minPx pixels large.
func connectedBoxes(binary []bool, w, h, minPx int) []image.Rectangle {
	visited := make([]bool, len(binary))
	var boxes []image.Rectangle
	var stack []int
	for start := range binary {
		if !binary[start] || visited[start] {
			continue
		}
		minX, minY := w, h
		maxX, maxY := 0, 0
		count := 0
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			count++
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
			for _, n := range [4]int{i - 1, i + 1, i - w, i + w} {
				if n < 0 || n >= len(binary) || !binary[n] || visited[n] {
					continue
				}
				// Skip row-wrapping horizontal neighbors.
				if (n == i-1 && x == 0) || (n == i+1 && x == w-1) {
					continue
				}
				visited[n] = true
				stack = append(stack, n)
			}
		}
		if count >= minPx {
			boxes = append(boxes, image.Rect(minX, minY, maxX, maxY))
		}
	}
	return boxes
}

func snap32(v int) int {
	if v < 32 {
		return 32
	}
	return int(math.Round(float64(v)/32)) * 32
}

func snap8(v int) int {
	if v < 8 {
		return 8
	}
	return (v / 8) * 8
}

// setONNXLibraryPath points onnxruntime_go at the shared library, checking
// common system locations first and falling back to a project-relative copy.
func setONNXLibraryPath() error {
	systemPaths := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
	for _, p := range systemPaths {
		if _, err := os.Stat(p); err == nil {
			onnxrt.SetSharedLibraryPath(p)
			return nil
		}
	}

	var libName string
	switch runtime.GOOS {
	case "linux":
		libName = "libonnxruntime.so"
	case "darwin":
		libName = "libonnxruntime.dylib"
	case "windows":
		libName = "onnxruntime.dll"
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	for root := cwd; ; root = filepath.Dir(root) {
		libPath := filepath.Join(root, "onnxruntime", "lib", libName)
		if _, err := os.Stat(libPath); err == nil {
			onnxrt.SetSharedLibraryPath(libPath)
			return nil
		}
		if filepath.Dir(root) == root {
			return errors.New("onnxruntime shared library not found")
		}
	}
}
