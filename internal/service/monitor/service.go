// Package monitor runs the deal-thread watch loop: poll the comment
// source, notify new comments and persist the seen ids.
package monitor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/darkkaiser/mydealz-monitor/internal/config"
	"github.com/darkkaiser/mydealz-monitor/internal/notification"
	"github.com/darkkaiser/mydealz-monitor/internal/pepper"
	applog "github.com/darkkaiser/mydealz-monitor/pkg/log"
)

const component = "monitor"

// startupMessagePrefix builds the default startup text when none is
// configured.
const startupMessagePrefix = "Monitoring gestartet: "

// maxErrorBackoff caps the wait after a failed poll iteration.
const maxErrorBackoff = 3 * time.Minute

// photoSendInterval paces sequential photo uploads of one comment.
const photoSendInterval = 700 * time.Millisecond

// Service is the monitor poll loop.
type Service struct {
	threadURL       string
	startupMessage  string
	startupImageURL string
	pollInterval    time.Duration

	source   CommentSource
	notifier notification.Notifier
	store    *FileStateStore

	photoLimiter *rate.Limiter

	// state and seen are owned by the loop goroutine after Start.
	state *State
	seen  *seenSet

	running   bool
	runningMu sync.Mutex
}

// NewService wires the monitor from its collaborators.
func NewService(appConfig *config.AppConfig, source CommentSource, notifier notification.Notifier, store *FileStateStore) *Service {
	return &Service{
		threadURL:       pepper.BaseThreadURL(appConfig.MyDealz.ThreadURL),
		startupMessage:  appConfig.Startup.Message,
		startupImageURL: appConfig.Startup.ImageURL,
		pollInterval:    appConfig.MyDealz.PollInterval(),

		source:   source,
		notifier: notifier,
		store:    store,

		photoLimiter: rate.NewLimiter(rate.Every(photoSendInterval), 1),

		seen: newSeenSet(appConfig.MyDealz.SeenLimit, nil),
	}
}

// Start loads the persisted state and launches the poll loop.
func (s *Service) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	applog.WithComponent(component).Info("starting the monitor service...")

	if s.running {
		defer serviceStopWG.Done()
		applog.WithComponent(component).Warn("the monitor service is already running!!!")
		return nil
	}

	s.state = s.store.Load()
	s.seen.Append(s.state.SeenCommentIDs...)

	applog.WithComponentAndFields(component, applog.Fields{
		"thread_url": s.threadURL,
		"seen_count": s.seen.Len(),
	}).Info("monitor state loaded")

	go s.run(serviceStopCtx, serviceStopWG)

	s.running = true

	applog.WithComponent(component).Info("the monitor service started")

	return nil
}

func (s *Service) run(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) {
	defer serviceStopWG.Done()

	snapshot := s.sendStartupNotification(serviceStopCtx)

	for {
		sleep := s.pollInterval

		if err := s.runOnce(serviceStopCtx, snapshot); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"error": err,
			}).Error("the poll iteration failed")

			sleep = min(maxErrorBackoff, 2*s.pollInterval)
		}
		snapshot = nil

		select {
		case <-serviceStopCtx.Done():
			s.shutdown()
			return
		case <-time.After(sleep):
		}
	}
}

func (s *Service) shutdown() {
	applog.WithComponent(component).Info("stopping the monitor service...")

	s.persistState()

	s.runningMu.Lock()
	s.running = false
	s.runningMu.Unlock()

	applog.WithComponent(component).Info("the monitor service stopped")
}

// sendStartupNotification announces the monitor start, forwards the
// newest comment as a baseline and seeds the seen set with the whole
// snapshot so only comments arriving from now on notify. Returns the
// snapshot for the first poll iteration.
func (s *Service) sendStartupNotification(ctx context.Context) []pepper.Comment {
	message := s.startupMessage
	if message == "" {
		message = startupMessagePrefix + s.threadURL
	}

	if err := s.notifier.SendText(ctx, message); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Warn("the startup message could not be sent")
	}

	if s.startupImageURL != "" {
		if err := s.notifier.SendPhoto(ctx, s.startupImageURL, message); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"error": err,
			}).Warn("the startup image could not be sent")
		}
	}

	comments, err := s.source.FetchComments(ctx)
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Warn("the startup comment snapshot could not be fetched")
		return nil
	}

	if len(comments) == 0 {
		applog.WithComponent(component).Info("no comments available to snapshot on startup")
		return nil
	}

	latest := comments[len(comments)-1]
	s.notifyComment(ctx, &latest, titleStartupComment)

	for _, c := range comments {
		s.seen.Append(c.ID)
	}
	s.persistState()

	return comments
}

// runOnce processes one poll iteration. snapshot, when non-nil, is used
// instead of fetching.
func (s *Service) runOnce(ctx context.Context, snapshot []pepper.Comment) error {
	comments := snapshot
	if comments == nil {
		var err error
		comments, err = s.source.FetchComments(ctx)
		if err != nil {
			return err
		}
	}

	if len(comments) == 0 {
		applog.WithComponent(component).Debug("no comments found (yet)")
		return nil
	}

	fresh := s.seen.FilterNew(comments)
	if len(fresh) == 0 {
		applog.WithComponent(component).Debug("no new comments")
		return nil
	}

	var messagesSent, imagesSent int
	for i := range fresh {
		if ctx.Err() != nil {
			break
		}

		messageOK, sent := s.notifyComment(ctx, &fresh[i], titleNewComment)
		if messageOK {
			messagesSent++
		}
		imagesSent += sent

		// Seen after the attempt: delivery failures are never retried.
		s.seen.Append(fresh[i].ID)
	}

	s.persistState()

	applog.WithComponentAndFields(component, applog.Fields{
		"new_comments":  len(fresh),
		"messages_sent": messagesSent,
		"images_sent":   imagesSent,
	}).Info("new comments processed")

	return nil
}

// notifyComment sends the text message for one comment followed by its
// images, throttled. Failures are logged, not returned; the outcome is
// reported for counting.
func (s *Service) notifyComment(ctx context.Context, c *pepper.Comment, title string) (messageOK bool, imagesSent int) {
	message := renderCommentMessage(s.threadURL, title, c)
	if err := s.notifier.SendText(ctx, message); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"comment_id": c.ID,
			"error":      err,
		}).Warn("the comment message could not be sent")
	} else {
		messageOK = true
	}

	if len(c.Images) == 0 {
		return messageOK, 0
	}

	imageTitle := title + " - Bild"
	total := len(c.Images)

	for idx, imageURL := range c.Images {
		if err := s.photoLimiter.Wait(ctx); err != nil {
			return messageOK, imagesSent
		}

		caption := renderPhotoCaption(s.threadURL, imageTitle, c, idx+1, total)
		if err := s.notifier.SendPhoto(ctx, imageURL, caption); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"comment_id": c.ID,
				"image_url":  imageURL,
				"error":      err,
			}).Warn("a comment image could not be sent")
			continue
		}
		imagesSent++
	}

	return messageOK, imagesSent
}

func (s *Service) persistState() {
	s.state.SeenCommentIDs = s.seen.IDs()

	if err := s.store.Save(s.state); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Error("the monitor state could not be saved")
	}
}
