package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"sentinel/internal/config"
	"sentinel/internal/logger"
	"sentinel/internal/media"
	"sentinel/internal/model"
	"sentinel/internal/service/analysis"

	"gocv.io/x/gocv"
)

const (
	objectModelName = "ssd-mobilenet-coco"
	motionModelName = "frame-diff-motion"
	// motionLabel is reported when motion between sampled video frames exceeds the threshold.
	motionLabel = "motion"
)

// DetectorService runs an SSD-style DNN over images and sampled video frames.
// A DetectorService is used by a single analysis worker at a time.
type DetectorService struct {
	net        gocv.Net
	loaded     bool
	modelPath  string
	configPath string
	threshold  float64

	frameStride     int
	maxFrames       int
	motionThreshold int

	mu     sync.Mutex
	logger *logger.Logger
}

var _ analysis.Detector = (*DetectorService)(nil)

// NewDetectorService creates a detector and tries to load the DNN network.
// A missing model leaves the detector in degraded mode; Analyze then fails.
func NewDetectorService(config *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath:       config.ModelPath,
		configPath:      config.ConfigPath,
		threshold:       config.DetectionThreshold,
		frameStride:     max(config.VideoFrameStride, 1),
		maxFrames:       max(config.VideoMaxFrames, 1),
		motionThreshold: config.MotionThreshold,
		logger:          logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
		return service
	}

	return service
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.loaded = true
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Status reports whether the object detection model is loaded.
func (s *DetectorService) Status() model.AIStatus {
	status := model.AIStatus{
		Status:        model.AIStatusOnline,
		YoloAvailable: s.loaded,
	}
	if !s.loaded {
		status.Status = model.AIStatusDegraded
	}
	return status
}

// Analyze detects objects in an image, or in sampled frames of a video.
func (s *DetectorService) Analyze(ctx context.Context, path, mimeType string) (*analysis.Output, error) {
	if !s.loaded {
		return nil, fmt.Errorf("detection network not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if media.IsVideo(mimeType) {
		return s.analyzeVideo(ctx, path)
	}
	return s.analyzeImage(path)
}

func (s *DetectorService) analyzeImage(path string) (*analysis.Output, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("failed to decode image %s", path)
	}

	detections := s.detectObjects(mat)
	return &analysis.Output{
		Detections:     detections,
		FrameWidth:     mat.Cols(),
		FrameHeight:    mat.Rows(),
		FramesAnalyzed: 1,
		Models:         []string{objectModelName},
	}, nil
}

// analyzeVideo runs object detection on every frameStride-th frame (up to maxFrames)
// and flags motion between consecutive sampled frames.
func (s *DetectorService) analyzeVideo(ctx context.Context, path string) (*analysis.Output, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}
	defer capture.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	previous := gocv.NewMat()
	defer previous.Close()

	out := &analysis.Output{Models: []string{objectModelName, motionModelName}}
	best := make(map[string]analysis.Detection)

	for index := 0; out.FramesAnalyzed < s.maxFrames; index++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("video analysis interrupted: %w", err)
		}
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			break
		}
		if index%s.frameStride != 0 {
			continue
		}

		out.FramesAnalyzed++
		out.FrameWidth, out.FrameHeight = frame.Cols(), frame.Rows()

		for _, det := range s.detectObjects(frame) {
			if current, ok := best[det.Label]; !ok || det.Confidence > current.Confidence {
				best[det.Label] = det
			}
		}

		if !previous.Empty() {
			changed, err := s.motionPixels(previous, frame)
			if err != nil {
				s.logger.Warning("Motion check failed for %s: %v", path, err)
			} else if changed > s.motionThreshold {
				area := float64(out.FrameWidth * out.FrameHeight)
				confidence := min(float64(changed)/area*4, 1)
				if current, ok := best[motionLabel]; !ok || confidence > current.Confidence {
					best[motionLabel] = analysis.Detection{
						Label:      motionLabel,
						Confidence: confidence,
						X2:         float64(out.FrameWidth),
						Y2:         float64(out.FrameHeight),
					}
				}
			}
		}
		frame.CopyTo(&previous)
	}

	if out.FramesAnalyzed == 0 {
		return nil, fmt.Errorf("no readable frames in %s", path)
	}

	for _, det := range best {
		out.Detections = append(out.Detections, det)
	}
	return out, nil
}

// motionPixels counts pixels that changed noticeably between two frames.
func (s *DetectorService) motionPixels(previous, current gocv.Mat) (int, error) {
	diff := gocv.NewMat()
	defer diff.Close()
	if err := gocv.AbsDiff(previous, current, &diff); err != nil {
		return 0, fmt.Errorf("failed to compute absolute difference: %w", err)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray); err != nil {
		return 0, fmt.Errorf("failed to convert image to grayscale: %w", err)
	}

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(gray, &thresh, 30, 255, gocv.ThresholdBinary)

	return gocv.CountNonZero(thresh), nil
}

// detectObjects runs the DNN on one frame and keeps detections above the confidence threshold.
func (s *DetectorService) detectObjects(mat gocv.Mat) []analysis.Detection {
	// Blob parameters fit the SSD COCO network input.
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	var results []analysis.Detection
	cols, rows := float32(mat.Cols()), float32(mat.Rows())

	// Each row: [batch_id, class_id, confidence, x1, y1, x2, y2] with normalized coordinates.
	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()
	for i := 0; i < reshaped.Rows(); i++ {
		confidence := float64(reshaped.GetFloatAt(i, 2))
		if confidence < s.threshold {
			continue
		}
		classID := int(reshaped.GetFloatAt(i, 1))
		results = append(results, analysis.Detection{
			Label:      classLabel(classID),
			Confidence: confidence,
			X1:         float64(reshaped.GetFloatAt(i, 3) * cols),
			Y1:         float64(reshaped.GetFloatAt(i, 4) * rows),
			X2:         float64(reshaped.GetFloatAt(i, 5) * cols),
			Y2:         float64(reshaped.GetFloatAt(i, 6) * rows),
		})
	}

	return results
}

// Close releases the DNN network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		s.loaded = false
		return s.net.Close()
	}
	return nil
}

// classLabel maps COCO class IDs to labels.
func classLabel(classID int) string {
	if label, exists := cocoLabels[classID]; exists {
		return label
	}
	return fmt.Sprintf("class_%d", classID)
}

var cocoLabels = map[int]string{
	1:  "person",
	2:  "bicycle",
	3:  "car",
	4:  "motorcycle",
	5:  "airplane",
	6:  "bus",
	8:  "truck",
	16: "bird",
	17: "cat",
	18: "dog",
	27: "backpack",
	31: "handbag",
	33: "suitcase",
	44: "bottle",
	49: "knife",
	77: "cell phone",
}
