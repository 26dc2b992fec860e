package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/domain/errs"
)

// DefaultReceiveIDType addresses speakers by their Lark open_id
const DefaultReceiveIDType = "open_id"

// messageCreator is the slice of the IM API the notifier uses
type messageCreator interface {
	Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error)
}

// Notifier implements port.Notifier with Lark text messages
type Notifier struct {
	messages      messageCreator
	receiveIDType string
	logger        *zap.Logger
}

// NewNotifier creates a Notifier sending through client
func NewNotifier(client *SDKClient, receiveIDType string, logger *zap.Logger) *Notifier {
	return newNotifier(client.GetClient().Im.Message, receiveIDType, logger)
}

func newNotifier(messages messageCreator, receiveIDType string, logger *zap.Logger) *Notifier {
	if receiveIDType == "" {
		receiveIDType = DefaultReceiveIDType
	}
	return &Notifier{messages: messages, receiveIDType: receiveIDType, logger: logger}
}

// NotifySpeaker sends message as a plain text IM to the speaker.
// Transport failures come back as retriable network errors.
func (n *Notifier) NotifySpeaker(ctx context.Context, speakerID, message string) error {
	if speakerID == "" {
		return fmt.Errorf("speaker ID cannot be empty")
	}
	if message == "" {
		return fmt.Errorf("message cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(n.receiveIDType).
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(speakerID).
			MsgType(larkIm.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.messages.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("receive_id", speakerID),
			zap.Error(err))
		return errs.NewNetworkError("send lark message", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("receive_id", speakerID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("lark API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	n.logger.Info("Message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id", speakerID))
	return nil
}

var _ port.Notifier = (*Notifier)(nil)
