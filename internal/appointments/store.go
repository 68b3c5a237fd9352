package appointments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/medconnect/telehealth-platform/pkg/logging"
)

const (
	patientStartIndex = "patient-start-index"
	doctorStartIndex  = "doctor-start-index"

	// Stored timestamps are UTC RFC3339 so the GSI range key sorts
	// chronologically.
	timeLayout = time.RFC3339
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store persists appointments in the appointments document table.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointments: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{client: client, tableName: tableName, logger: logger}
}

// appointmentItem is the wire shape of an appointment record.
type appointmentItem struct {
	ID              string `dynamodbav:"id"`
	PatientID       string `dynamodbav:"patientId"`
	DoctorID        string `dynamodbav:"doctorId"`
	PatientName     string `dynamodbav:"patientName"`
	DoctorName      string `dynamodbav:"doctorName"`
	Title           string `dynamodbav:"title"`
	Start           string `dynamodbav:"start"`
	End             string `dynamodbav:"end"`
	Status          string `dynamodbav:"status"`
	Modality        string `dynamodbav:"modality"`
	Notes           string `dynamodbav:"notes,omitempty"`
	CalendlyEventID string `dynamodbav:"calendlyEventId,omitempty"`
	CreatedAt       string `dynamodbav:"createdAt"`
	UpdatedAt       string `dynamodbav:"updatedAt"`
}

// Create inserts a new appointment, assigning its id and timestamps.
func (s *Store) Create(ctx context.Context, appt *Appointment) (string, error) {
	if appt == nil {
		return "", errors.New("appointments: appointment cannot be nil")
	}
	if strings.TrimSpace(appt.PatientID) == "" || strings.TrimSpace(appt.DoctorID) == "" {
		return "", ErrMissingParticipant
	}
	if !appt.Start.Before(appt.End) {
		return "", ErrInvalidTimeRange
	}
	if !ValidStatus(appt.Status) {
		return "", ErrInvalidStatus
	}

	now := time.Now().UTC()
	appt.ID = uuid.NewString()
	appt.CreatedAt = now
	appt.UpdatedAt = now

	item, err := attributevalue.MarshalMap(toItem(appt))
	if err != nil {
		return "", fmt.Errorf("appointments: failed to marshal appointment: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return "", fmt.Errorf("appointments: failed to persist appointment: %w", err)
	}
	s.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"patient_id", appt.PatientID,
		"doctor_id", appt.DoctorID,
	)
	return appt.ID, nil
}

// Get fetches a single appointment by id.
func (s *Store) Get(ctx context.Context, id string) (*Appointment, error) {
	if id == "" {
		return nil, errors.New("appointments: id required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to fetch appointment: %w", err)
	}
	if out.Item == nil {
		return nil, ErrAppointmentNotFound
	}

	var item appointmentItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("appointments: failed to decode appointment: %w", err)
	}
	return fromItem(item)
}

// ListByParticipant returns a participant's appointments ordered by start
// time, most recent first. The role selects whether the patient or doctor
// index is queried.
func (s *Store) ListByParticipant(ctx context.Context, userID string, role ParticipantRole) ([]*Appointment, error) {
	if userID == "" {
		return nil, errors.New("appointments: user id required")
	}

	indexName := patientStartIndex
	keyAttr := "patientId"
	if role == RoleDoctor {
		indexName = doctorStartIndex
		keyAttr = "doctorId"
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(indexName),
		KeyConditionExpression: aws.String("#pid = :uid"),
		ExpressionAttributeNames: map[string]string{
			"#pid": keyAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to list for %s %s: %w", keyAttr, userID, err)
	}

	return decodeItems(out.Items)
}

// ListAll returns every appointment ordered by start time ascending, for the
// shared calendar view.
func (s *Store) ListAll(ctx context.Context) ([]*Appointment, error) {
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to scan appointments: %w", err)
	}

	appts, err := decodeItems(out.Items)
	if err != nil {
		return nil, err
	}
	sort.Slice(appts, func(i, j int) bool { return appts[i].Start.Before(appts[j].Start) })
	return appts, nil
}

// UpdateStatus sets the status and refreshes the update instant. Transitions
// are unconstrained.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) error {
	if id == "" {
		return errors.New("appointments: id required")
	}
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String("SET #status = :status, #updated = :updated"),
		ExpressionAttributeNames: map[string]string{
			"#status":  "status",
			"#updated": "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(status)},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(timeLayout)},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("appointments: failed to update status for %s: %w", id, err)
	}
	return nil
}

// Cancel marks the appointment cancelled.
func (s *Store) Cancel(ctx context.Context, id string) error {
	return s.UpdateStatus(ctx, id, StatusCancelled)
}

// Delete removes the appointment permanently.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("appointments: id required")
	}
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("appointments: failed to delete %s: %w", id, err)
	}
	return nil
}

func toItem(appt *Appointment) appointmentItem {
	return appointmentItem{
		ID:              appt.ID,
		PatientID:       appt.PatientID,
		DoctorID:        appt.DoctorID,
		PatientName:     appt.PatientName,
		DoctorName:      appt.DoctorName,
		Title:           appt.Title,
		Start:           appt.Start.UTC().Format(timeLayout),
		End:             appt.End.UTC().Format(timeLayout),
		Status:          string(appt.Status),
		Modality:        string(appt.Modality),
		Notes:           appt.Notes,
		CalendlyEventID: appt.CalendlyEventID,
		CreatedAt:       appt.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:       appt.UpdatedAt.UTC().Format(timeLayout),
	}
}

func fromItem(item appointmentItem) (*Appointment, error) {
	start, err := time.Parse(timeLayout, item.Start)
	if err != nil {
		return nil, fmt.Errorf("appointments: bad start time on %s: %w", item.ID, err)
	}
	end, err := time.Parse(timeLayout, item.End)
	if err != nil {
		return nil, fmt.Errorf("appointments: bad end time on %s: %w", item.ID, err)
	}
	createdAt, _ := time.Parse(timeLayout, item.CreatedAt)
	updatedAt, _ := time.Parse(timeLayout, item.UpdatedAt)

	return &Appointment{
		ID:              item.ID,
		PatientID:       item.PatientID,
		DoctorID:        item.DoctorID,
		PatientName:     item.PatientName,
		DoctorName:      item.DoctorName,
		Title:           item.Title,
		Start:           start,
		End:             end,
		Status:          Status(item.Status),
		Modality:        Modality(item.Modality),
		Notes:           item.Notes,
		CalendlyEventID: item.CalendlyEventID,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

func decodeItems(items []map[string]types.AttributeValue) ([]*Appointment, error) {
	out := make([]*Appointment, 0, len(items))
	for _, raw := range items {
		var item appointmentItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("appointments: failed to decode appointment: %w", err)
		}
		appt, err := fromItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, nil
}
