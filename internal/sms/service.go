// Package sms — рассылки: кампании, журнал отправки, экстренные
// оповещения. Отправка идёт через Gateway; в демо-режиме сообщения
// только логируются в sms_logs.
package sms

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/otabek-dev/mahalla-admin/internal/metrics"
	"github.com/otabek-dev/mahalla-admin/internal/models"
	"github.com/otabek-dev/mahalla-admin/internal/store"
	"github.com/otabek-dev/mahalla-admin/internal/validate"
)

// Gateway — транспорт доставки SMS.
type Gateway interface {
	Send(ctx context.Context, phone, text string) error
}

// DemoGateway принимает любое сообщение без реальной отправки.
type DemoGateway struct{}

func (DemoGateway) Send(context.Context, string, string) error { return nil }

var campaignColumns = []string{
	"id", "title", "message_text", "campaign_type", "sent_count",
	"delivered_count", "failed_count", "scheduled_at", "sent_at",
	"created_at", "updated_at", "created_by",
}

var noticeColumns = []string{
	"id", "title", "message_text", "emergency_type", "priority",
	"affected_area", "sent_count", "created_at", "created_by",
}

var logColumns = []string{
	"id", "campaign_id", "citizen_id", "phone", "message_text",
	"status", "error_message", "sent_at", "delivered_at", "created_at",
}

// Recipient — адресат рассылки.
type Recipient struct {
	CitizenID int64
	Phone     string
}

type Service struct {
	campaigns *store.Store
	notices   *store.Store
	logs      *store.Store
	db        *sql.DB
	gateway   Gateway
	log       *zap.Logger
}

func NewService(database *sql.DB, log *zap.Logger, gateway Gateway) *Service {
	if gateway == nil {
		gateway = DemoGateway{}
	}
	return &Service{
		campaigns: store.New(database, log, store.Config{
			Table:        "sms_campaigns",
			Columns:      campaignColumns,
			Required:     []string{"title", "message_text"},
			SearchFields: []string{"title", "message_text"},
		}),
		notices: store.New(database, log, store.Config{
			Table:    "emergency_sms",
			Columns:  noticeColumns,
			Required: []string{"title", "message_text", "emergency_type"},
		}),
		logs: store.New(database, log, store.Config{
			Table:   "sms_logs",
			Columns: logColumns,
		}),
		db:      database,
		gateway: gateway,
		log:     log.Named("sms"),
	}
}

func (s *Service) CreateCampaign(ctx context.Context, c models.SMSCampaign) (int64, validate.Errors, error) {
	if errs := validate.Campaign(c); !errs.OK() {
		return 0, errs, nil
	}
	f := map[string]any{
		"title":        c.Title,
		"message_text": c.MessageText,
	}
	if c.CampaignType != "" {
		f["campaign_type"] = string(c.CampaignType)
	}
	if c.ScheduledAt != nil {
		f["scheduled_at"] = c.ScheduledAt.UTC().Format(store.TimeLayout)
	}
	if c.CreatedBy != nil {
		f["created_by"] = *c.CreatedBy
	}
	id, err := s.campaigns.Create(ctx, f)
	if err != nil {
		return 0, nil, err
	}
	s.log.Info("кампания создана", zap.Int64("id", id), zap.String("title", c.Title))
	return id, nil, nil
}

func (s *Service) GetCampaign(ctx context.Context, id int64) (*models.SMSCampaign, error) {
	row, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c := campaignFromRow(row)
	return &c, nil
}

// SendCampaign отправляет кампанию адресатам. Адресаты без валидного
// телефона пропускаются до отправки. Каждая попытка фиксируется в
// sms_logs, итоги — в счётчиках кампании.
func (s *Service) SendCampaign(ctx context.Context, campaignID int64, recipients []Recipient) (sent, failed int, err error) {
	campaign, err := s.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now().UTC().Format(store.TimeLayout)
	for _, r := range recipients {
		phone, ok := validate.NormalizePhone(r.Phone)
		if !ok {
			continue
		}

		logRow := map[string]any{
			"campaign_id":  campaignID,
			"citizen_id":   r.CitizenID,
			"phone":        phone,
			"message_text": campaign.MessageText,
			"sent_at":      now,
		}
		if sendErr := s.gateway.Send(ctx, phone, campaign.MessageText); sendErr != nil {
			logRow["status"] = string(models.SMSFailed)
			logRow["error_message"] = sendErr.Error()
			failed++
			metrics.SMSLogged.WithLabelValues(string(models.SMSFailed)).Inc()
		} else {
			logRow["status"] = string(models.SMSSent)
			sent++
			metrics.SMSLogged.WithLabelValues(string(models.SMSSent)).Inc()
		}
		if _, err := s.logs.Create(ctx, logRow); err != nil {
			return sent, failed, err
		}
	}

	err = s.campaigns.Update(ctx, campaignID, map[string]any{
		"sent_count":   sent,
		"failed_count": failed,
		"sent_at":      now,
	})
	if err != nil {
		return sent, failed, err
	}
	s.log.Info("кампания отправлена",
		zap.Int64("campaign_id", campaignID),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
	return sent, failed, nil
}

// activeRecipients — активные граждане с валидными телефонами.
func (s *Service) activeRecipients(ctx context.Context) ([]Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, phone FROM citizens
WHERE is_active = 1 AND phone IS NOT NULL AND phone != ''
ORDER BY full_name`)
	if err != nil {
		return nil, fmt.Errorf("адресаты рассылки: %w", err)
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.CitizenID, &r.Phone); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SendToActiveCitizens — кампания на всех активных граждан с телефонами.
func (s *Service) SendToActiveCitizens(ctx context.Context, campaignID int64) (sent, failed int, err error) {
	recipients, err := s.activeRecipients(ctx)
	if err != nil {
		return 0, 0, err
	}
	return s.SendCampaign(ctx, campaignID, recipients)
}

// DispatchDue отправляет созревшие отложенные кампании
// (scheduled_at наступил, sent_at ещё пуст). Возвращает число
// обработанных кампаний.
func (s *Service) DispatchDue(ctx context.Context) (int, error) {
	now := time.Now().UTC().Format(store.TimeLayout)
	rows, err := s.campaigns.GetAll(ctx,
		store.F().NotNull("scheduled_at").Lte("scheduled_at", now).IsNull("sent_at"),
		"scheduled_at")
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, row := range rows {
		id := row.Int64("id")
		if _, _, err := s.SendToActiveCitizens(ctx, id); err != nil {
			s.log.Error("отложенная кампания не отправлена", zap.Int64("campaign_id", id), zap.Error(err))
			continue
		}
		dispatched++
	}
	return dispatched, nil
}

// CreateNotice регистрирует экстренное оповещение.
func (s *Service) CreateNotice(ctx context.Context, n models.EmergencyNotice) (int64, validate.Errors, error) {
	if errs := validate.EmergencyNotice(n); !errs.OK() {
		return 0, errs, nil
	}
	f := map[string]any{
		"title":          n.Title,
		"message_text":   n.MessageText,
		"emergency_type": n.EmergencyType,
		"priority":       n.Priority,
	}
	if n.AffectedArea != nil {
		f["affected_area"] = *n.AffectedArea
	}
	if n.CreatedBy != nil {
		f["created_by"] = *n.CreatedBy
	}
	id, err := s.notices.Create(ctx, f)
	if err != nil {
		return 0, nil, err
	}
	return id, nil, nil
}

// Broadcast — немедленная веерная рассылка оповещения всем активным
// гражданам с телефонами. Строки журнала идут без campaign_id.
func (s *Service) Broadcast(ctx context.Context, noticeID int64) (int, error) {
	row, err := s.notices.GetByID(ctx, noticeID)
	if err != nil {
		return 0, err
	}
	text := row.String("message_text")

	recipients, err := s.activeRecipients(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(store.TimeLayout)
	sent := 0
	for _, r := range recipients {
		phone, ok := validate.NormalizePhone(r.Phone)
		if !ok {
			continue
		}
		logRow := map[string]any{
			"citizen_id":   r.CitizenID,
			"phone":        phone,
			"message_text": text,
			"sent_at":      now,
		}
		if sendErr := s.gateway.Send(ctx, phone, text); sendErr != nil {
			logRow["status"] = string(models.SMSFailed)
			logRow["error_message"] = sendErr.Error()
			metrics.SMSLogged.WithLabelValues(string(models.SMSFailed)).Inc()
		} else {
			logRow["status"] = string(models.SMSSent)
			sent++
			metrics.SMSLogged.WithLabelValues(string(models.SMSSent)).Inc()
		}
		if _, err := s.logs.Create(ctx, logRow); err != nil {
			return sent, err
		}
	}

	if err := s.notices.Update(ctx, noticeID, map[string]any{"sent_count": sent}); err != nil {
		return sent, err
	}
	s.log.Info("экстренное оповещение разослано",
		zap.Int64("notice_id", noticeID), zap.Int("sent", sent))
	return sent, nil
}

func (s *Service) CampaignLogs(ctx context.Context, campaignID int64) ([]models.SMSLog, error) {
	rows, err := s.logs.GetAll(ctx, store.F().Eq("campaign_id", campaignID), "id")
	if err != nil {
		return nil, err
	}
	out := make([]models.SMSLog, 0, len(rows))
	for _, row := range rows {
		l := models.SMSLog{
			ID:          row.Int64("id"),
			Phone:       row.String("phone"),
			MessageText: row.String("message_text"),
			Status:      models.SMSStatus(row.String("status")),
		}
		if !row.IsNull("campaign_id") {
			v := row.Int64("campaign_id")
			l.CampaignID = &v
		}
		if !row.IsNull("citizen_id") {
			v := row.Int64("citizen_id")
			l.CitizenID = &v
		}
		if !row.IsNull("error_message") {
			v := row.String("error_message")
			l.ErrorMessage = &v
		}
		if !row.IsNull("sent_at") {
			t := row.Time("sent_at")
			l.SentAt = &t
		}
		if !row.IsNull("delivered_at") {
			t := row.Time("delivered_at")
			l.DeliveredAt = &t
		}
		out = append(out, l)
	}
	return out, nil
}

type CampaignStats struct {
	Total     int64
	Sent      int64
	Failed    int64
	Delivered int64
}

func (s *Service) CampaignStatistics(ctx context.Context, campaignID int64) (*CampaignStats, error) {
	query := `
SELECT COUNT(*),
       SUM(CASE WHEN status = 'SENT' THEN 1 ELSE 0 END),
       SUM(CASE WHEN status = 'FAILED' THEN 1 ELSE 0 END),
       SUM(CASE WHEN status = 'DELIVERED' THEN 1 ELSE 0 END)
FROM sms_logs WHERE campaign_id = ?`

	var st CampaignStats
	var sent, failed, delivered sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, campaignID).Scan(&st.Total, &sent, &failed, &delivered)
	if err != nil {
		return nil, fmt.Errorf("статистика кампании: %w", err)
	}
	st.Sent, st.Failed, st.Delivered = sent.Int64, failed.Int64, delivered.Int64
	return &st, nil
}

func campaignFromRow(row store.Row) models.SMSCampaign {
	c := models.SMSCampaign{
		ID:             row.Int64("id"),
		Title:          row.String("title"),
		MessageText:    row.String("message_text"),
		CampaignType:   models.CampaignType(row.String("campaign_type")),
		SentCount:      row.Int("sent_count"),
		DeliveredCount: row.Int("delivered_count"),
		FailedCount:    row.Int("failed_count"),
		CreatedAt:      row.Time("created_at"),
	}
	if !row.IsNull("scheduled_at") {
		t := row.Time("scheduled_at")
		c.ScheduledAt = &t
	}
	if !row.IsNull("sent_at") {
		t := row.Time("sent_at")
		c.SentAt = &t
	}
	if !row.IsNull("created_by") {
		v := row.Int64("created_by")
		c.CreatedBy = &v
	}
	return c
}
