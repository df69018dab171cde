package job

import (
	"context"
	"errors"
	"testing"

	"itemsim/internal/infrastructure/mq"
	"itemsim/internal/model"
	"itemsim/internal/repository"
	"itemsim/internal/testutil"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testTopic = "itemsim.character-events"

func enqueue(t *testing.T, db *gorm.DB, key string) {
	t.Helper()
	repo := repository.NewOutboxRepository(db)
	require.NoError(t, repo.Enqueue(context.Background(), nil, testTopic, key, model.CharacterEvent{Type: model.EventMoneyMined}))
}

func outboxRow(t *testing.T, db *gorm.DB, key string) model.OutboxMessage {
	t.Helper()
	var msg model.OutboxMessage
	require.NoError(t, db.Where("message_key = ?", key).First(&msg).Error)
	return msg
}

func newSender(t *testing.T, db *gorm.DB, maxRetry int) (*OutboxSender, *mocks.SyncProducer) {
	t.Helper()
	producer := mocks.NewSyncProducer(t, nil)
	publisher := mq.NewPublisher(producer)
	t.Cleanup(func() {
		assert.NoError(t, publisher.Close())
	})

	cfg := testutil.Config()
	cfg.Jobs.MaxRetryCount = maxRetry
	return NewOutboxSender(db, publisher, cfg, zap.NewNop()), producer
}

func TestOutboxSenderPublishesInOrder(t *testing.T) {
	db := testutil.NewDB(t)
	sender, producer := newSender(t, db, 3)

	enqueue(t, db, "1")
	enqueue(t, db, "2")

	var keys []string
	capture := func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		keys = append(keys, string(key))
		assert.Equal(t, testTopic, msg.Topic)
		return err
	}
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(capture)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(capture)

	assert.Equal(t, 2, sender.processPendingMessages(context.Background()))
	assert.Equal(t, []string{"1", "2"}, keys)

	assert.Equal(t, model.OutboxStatusSent, outboxRow(t, db, "1").Status)
	assert.Equal(t, model.OutboxStatusSent, outboxRow(t, db, "2").Status)

	// nothing left to publish
	assert.Equal(t, 0, sender.processPendingMessages(context.Background()))
}

func TestOutboxSenderRetriesThenParks(t *testing.T) {
	db := testutil.NewDB(t)
	sender, producer := newSender(t, db, 2)
	enqueue(t, db, "7")

	producer.ExpectSendMessageAndFail(errors.New("broker down"))
	assert.Equal(t, 0, sender.processPendingMessages(context.Background()))

	msg := outboxRow(t, db, "7")
	assert.Equal(t, model.OutboxStatusPending, msg.Status)
	assert.Equal(t, 1, msg.RetryCount)

	producer.ExpectSendMessageAndFail(errors.New("broker down"))
	assert.Equal(t, 0, sender.processPendingMessages(context.Background()))

	msg = outboxRow(t, db, "7")
	assert.Equal(t, model.OutboxStatusFailed, msg.Status)
	assert.Equal(t, 2, msg.RetryCount)

	// parked rows are no longer polled
	assert.Equal(t, 0, sender.processPendingMessages(context.Background()))
}

func TestOutboxRedriverRequeuesFailed(t *testing.T) {
	db := testutil.NewDB(t)
	sender, producer := newSender(t, db, 1)
	enqueue(t, db, "9")

	producer.ExpectSendMessageAndFail(errors.New("broker down"))
	sender.processPendingMessages(context.Background())
	require.Equal(t, model.OutboxStatusFailed, outboxRow(t, db, "9").Status)

	redriver, err := NewOutboxRedriver(db, testutil.Config(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int64(1), redriver.redrive(context.Background()))

	msg := outboxRow(t, db, "9")
	assert.Equal(t, model.OutboxStatusPending, msg.Status)
	assert.Equal(t, 0, msg.RetryCount)

	producer.ExpectSendMessageAndSucceed()
	assert.Equal(t, 1, sender.processPendingMessages(context.Background()))
	assert.Equal(t, model.OutboxStatusSent, outboxRow(t, db, "9").Status)
}

func TestOutboxRedriverRejectsBadSchedule(t *testing.T) {
	cfg := testutil.Config()
	cfg.Jobs.RedriveSpec = "every now and then"

	_, err := NewOutboxRedriver(testutil.NewDB(t), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestOutboxSenderStop(t *testing.T) {
	sender, _ := newSender(t, testutil.NewDB(t), 3)

	done := make(chan struct{})
	go func() {
		sender.Start(context.Background())
		close(done)
	}()

	sender.Stop()
	sender.Stop()
	<-done
}
