// Package events publishes finished export jobs to RabbitMQ so downstream
// systems can fetch payloads without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/models"
)

// JobFinished is the message body published for terminal jobs.
type JobFinished struct {
	JobID        string    `json:"jobId"`
	DataType     string    `json:"dataType"`
	Format       string    `json:"format"`
	Status       string    `json:"status"`
	RecordCount  int       `json:"recordCount"`
	FileName     *string   `json:"fileName,omitempty"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	FinishedAt   time.Time `json:"finishedAt"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// session is one broker connection with its channel. closed fires when the
// broker drops the channel or the connection under it.
type session struct {
	ch     channel
	conn   io.Closer
	closed <-chan *amqp.Error
}

func (s *session) isClosed() bool {
	if s.closed == nil {
		return false
	}
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *session) close() error {
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Publisher sends JobFinished messages to a durable queue. A dropped
// session is replaced on the next publish.
type Publisher struct {
	mu      sync.Mutex
	dial    func() (*session, error)
	sess    *session
	queue   string
	timeout time.Duration
}

// Dial connects to the broker and declares the queue. The first connection
// is opened eagerly so misconfiguration shows up at startup.
func Dial(url, queue string) (*Publisher, error) {
	p := newPublisher(func() (*session, error) { return dialSession(url, queue) }, queue)
	sess, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.sess = sess
	return p, nil
}

func dialSession(url, queue string) (*session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &session{
		ch:     ch,
		conn:   conn,
		closed: ch.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

func newPublisher(dial func() (*session, error), queue string) *Publisher {
	return &Publisher{dial: dial, queue: queue, timeout: 5 * time.Second}
}

// NotifyJobChanged publishes completed and failed jobs. Other transitions
// are ignored. Publish errors are logged; the job row stays authoritative.
func (p *Publisher) NotifyJobChanged(job *models.ExportJob) {
	if !job.Status.IsTerminal() {
		return
	}
	if err := p.publish(job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to publish export job event")
	}
}

func (p *Publisher) publish(job *models.ExportJob) error {
	msg := JobFinished{
		JobID:        job.ID,
		DataType:     string(job.DataType),
		Format:       string(job.Format),
		Status:       string(job.Status),
		RecordCount:  job.RecordCount,
		FileName:     job.FileName,
		ErrorMessage: job.ErrorMessage,
		FinishedAt:   job.UpdatedAt,
	}
	if job.FinishedAt != nil {
		msg.FinishedAt = *job.FinishedAt
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	pub := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    job.ID,
		Timestamp:    msg.FinishedAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// one retry on a fresh session covers a broker restart between events
	for attempt := 1; ; attempt++ {
		sess, err := p.session()
		if err != nil {
			return err
		}
		err = sess.ch.PublishWithContext(ctx,
			"",      // exchange
			p.queue, // routing key
			false,   // mandatory
			false,   // immediate
			pub)
		if err == nil {
			break
		}
		p.drop()
		if attempt == 2 || ctx.Err() != nil {
			return fmt.Errorf("failed to publish job event: %w", err)
		}
		log.Warn().Err(err).Str("job_id", job.ID).Msg("RabbitMQ publish failed, reconnecting")
	}

	log.Debug().Str("job_id", job.ID).Str("status", msg.Status).Msg("Published export job event")
	return nil
}

// session returns the live session, redialing when the broker closed it.
// Callers hold p.mu.
func (p *Publisher) session() (*session, error) {
	if p.sess != nil && !p.sess.isClosed() {
		return p.sess, nil
	}
	p.drop()
	sess, err := p.dial()
	if err != nil {
		return nil, err
	}
	log.Info().Str("queue", p.queue).Msg("RabbitMQ session established")
	p.sess = sess
	return sess, nil
}

func (p *Publisher) drop() {
	if p.sess == nil {
		return
	}
	_ = p.sess.close()
	p.sess = nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess == nil {
		return nil
	}
	err := p.sess.close()
	p.sess = nil
	return err
}
