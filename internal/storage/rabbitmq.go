package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"jobook/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ErrRejectMessage 处理函数返回该错误时消息直接丢弃，不再重新入队
var ErrRejectMessage = errors.New("storage: reject message without requeue")

// RabbitMQ 连接与通道池
type RabbitMQ struct {
	conn         *amqp.Connection
	channelPool  sync.Pool
	declared     sync.Map
	publishMutex sync.Mutex
	cfg          *config.RabbitMQConfig
	logger       zerolog.Logger
}

// NewRabbitMQ 建立连接并验证能开通道
func NewRabbitMQ(cfg *config.RabbitMQConfig, logger zerolog.Logger) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	mq := &RabbitMQ{conn: conn, cfg: cfg, logger: logger.With().Str("component", "rabbitmq").Logger()}
	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, errPool := conn.Channel()
			if errPool != nil {
				mq.logger.Error().Err(errPool).Msg("创建RabbitMQ通道失败")
				return nil
			}
			return ch
		},
	}

	testCh := mq.getChannel()
	if testCh == nil {
		conn.Close()
		return nil, fmt.Errorf("无法创建RabbitMQ通道")
	}
	mq.putChannel(testCh)
	return mq, nil
}

// Ping 连接已关闭时返回错误
func (r *RabbitMQ) Ping(context.Context) error {
	if r.conn == nil || r.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ 连接已关闭")
	}
	return nil
}

func (r *RabbitMQ) getChannel() *amqp.Channel {
	v := r.channelPool.Get()
	if ch, ok := v.(*amqp.Channel); ok && ch != nil && !ch.IsClosed() {
		return ch
	}
	ch, err := r.conn.Channel()
	if err != nil {
		r.logger.Error().Err(err).Msg("创建新RabbitMQ通道失败")
		return nil
	}
	return ch
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// DeclareTopology 声明 CV 与公司事件的交换机、队列和绑定
func (r *RabbitMQ) DeclareTopology() error {
	bindings := []struct{ exchange, queue, key string }{
		{r.cfg.CVEventsExchange, r.cfg.CVUploadedQueue, r.cfg.CVUploadedRoutingKey},
		{r.cfg.CompanyEventsExchange, r.cfg.CompanyRegisteredQueue, r.cfg.CompanyRegisteredRoutingKey},
	}
	for _, b := range bindings {
		if err := r.EnsureExchange(b.exchange, amqp.ExchangeDirect, true); err != nil {
			return err
		}
		if err := r.EnsureQueue(b.queue, true); err != nil {
			return err
		}
		if err := r.BindQueue(b.queue, b.exchange, b.key); err != nil {
			return err
		}
	}
	return nil
}

// EnsureExchange 声明交换机，同名只声明一次
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	if exchangeName == "" {
		return fmt.Errorf("exchange名称不能为空")
	}
	return r.declareOnce("exchange:"+exchangeName, func(ch *amqp.Channel) error {
		return ch.ExchangeDeclare(exchangeName, exchangeType, durable, false, false, false, nil)
	})
}

// EnsureQueue 声明队列
func (r *RabbitMQ) EnsureQueue(queueName string, durable bool) error {
	if queueName == "" {
		return fmt.Errorf("queue名称不能为空")
	}
	return r.declareOnce("queue:"+queueName, func(ch *amqp.Channel) error {
		_, err := ch.QueueDeclare(queueName, durable, false, false, false, nil)
		return err
	})
}

// BindQueue 绑定队列到交换机
func (r *RabbitMQ) BindQueue(queueName, exchangeName, routingKey string) error {
	return r.declareOnce(fmt.Sprintf("binding:%s:%s:%s", exchangeName, queueName, routingKey), func(ch *amqp.Channel) error {
		return ch.QueueBind(queueName, routingKey, exchangeName, false, nil)
	})
}

func (r *RabbitMQ) declareOnce(key string, fn func(ch *amqp.Channel) error) error {
	if _, ok := r.declared.Load(key); ok {
		return nil
	}
	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	if err := fn(ch); err != nil {
		// 声明失败会关闭通道，不归还
		return fmt.Errorf("声明 %s 失败: %w", key, err)
	}
	r.putChannel(ch)
	r.declared.Store(key, true)
	r.logger.Debug().Str("what", key).Msg("RabbitMQ 拓扑已声明")
	return nil
}

// PublishMessage 发布消息
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}
	return ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		DeliveryMode: deliveryMode,
		ContentType:  "application/json",
		Body:         message,
		Timestamp:    time.Now(),
	})
}

// StartConsumer 启动 workers 个协程消费队列，ctx 结束时停止。
// handler 返回 nil 时 Ack；返回 ErrRejectMessage 或消息已重投过一次时丢弃，否则重新入队。
func (r *RabbitMQ) StartConsumer(ctx context.Context, queueName string, prefetchCount, workers int, handler func(ctx context.Context, body []byte) error) (<-chan struct{}, error) {
	if workers <= 0 {
		workers = 1
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("无法获取RabbitMQ通道: %w", err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("设置QoS失败: %w", err)
	}
	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("注册消费者失败: %w", err)
	}

	log := r.logger.With().Str("queue", queueName).Logger()
	log.Info().Int("prefetch", prefetchCount).Int("workers", workers).Msg("RabbitMQ消费者已启动")

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					handleDelivery(ctx, log, d, handler)
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		_ = ch.Close()
		log.Info().Msg("RabbitMQ消费者已停止")
		close(done)
	}()
	return done, nil
}

func handleDelivery(ctx context.Context, log zerolog.Logger, d amqp.Delivery, handler func(ctx context.Context, body []byte) error) {
	err := handler(ctx, d.Body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error().Err(ackErr).Msg("确认消息失败")
		}
		return
	}
	requeue := !errors.Is(err, ErrRejectMessage) && !d.Redelivered
	log.Warn().Err(err).Bool("requeue", requeue).Msg("消息处理失败")
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		log.Error().Err(nackErr).Msg("拒绝消息失败")
	}
}
