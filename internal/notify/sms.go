package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SMSRequest 短信网关请求体
type SMSRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
	RefID   string `json:"refId"`
}

// SMSResponse 短信网关响应
type SMSResponse struct {
	Status int             `json:"status"`
	MsgID  string          `json:"msgId"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

// SMSClient 短信网关客户端（Tiara Connect 风格的 HTTP API）
type SMSClient struct {
	httpClient *resty.Client
	senderID   string
	logger     *zap.Logger
}

// NewSMSClient 创建短信客户端
func NewSMSClient(baseURL, apiKey, senderID string, logger *zap.Logger) *SMSClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(apiKey)

	return &SMSClient{
		httpClient: client,
		senderID:   senderID,
		logger:     logger,
	}
}

// Send 发送一条短信，返回网关的 msgId
func (c *SMSClient) Send(to, message, refID string) (string, error) {
	request := SMSRequest{
		From:    c.senderID,
		To:      to,
		Message: message,
		RefID:   refID,
	}

	var response SMSResponse
	resp, err := c.httpClient.R().
		SetBody(request).
		SetResult(&response).
		Post("/api/v1/sms/send")
	if err != nil {
		return "", fmt.Errorf("failed to call SMS gateway: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("SMS gateway returned status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("SMS sent",
		zap.String("to", to),
		zap.String("msg_id", response.MsgID),
		zap.String("ref_id", refID),
	)

	return response.MsgID, nil
}
