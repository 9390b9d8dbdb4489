package api

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/inbox"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

const maxImageBytes = 10 << 20

// ImageUploader stores an image object and returns its public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, bucket, path, contentType string, data io.Reader) (string, error)
}

// WithUploader enables SendImage, storing objects in bucket.
func (s *InboxService) WithUploader(u ImageUploader, bucket string) *InboxService {
	s.uploader = u
	s.bucket = bucket
	return s
}

func (s *InboxService) SendImage(ctx context.Context, req *collatzv1.SendImageRequest) (*collatzv1.SendMessageResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "image uploads not configured")
	}
	if s.inbox.Active() == "" {
		return nil, toStatus("send image", inbox.ErrNoActiveConversation)
	}
	userID, err := s.me()
	if err != nil {
		return nil, toStatus("send image", err)
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "read image: %v", err)
	}
	if info.Size() > maxImageBytes {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "image larger than %d bytes", maxImageBytes)
	}
	mt, err := mimetype.DetectFile(req.Path)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "detect type: %v", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%s is not an image", mt.String())
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "read image: %v", err)
	}
	defer func() { _ = f.Close() }()

	object := fmt.Sprintf("%s/%s%s", userID, uuid.NewString(), mt.Extension())
	url, err := s.uploader.UploadImage(ctx, s.bucket, object, mt.String(), f)
	if err != nil {
		return nil, toStatus("upload image", err)
	}
	s.logger.Info("image uploaded", zap.String("object", object))

	content, err := inbox.EncodePayload(inbox.ImagePayload{
		URL:     url,
		Name:    filepath.Base(req.Path),
		Caption: strings.TrimSpace(req.Caption),
	})
	if err != nil {
		return nil, toStatus("send image", err)
	}
	entry, err := s.inbox.Send(ctx, content)
	if err != nil {
		return nil, toStatus("send image", err)
	}
	return &collatzv1.SendMessageResponse{Entry: s.entryToAPI(entry)}, nil
}
