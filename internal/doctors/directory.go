package doctors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/medconnect/telehealth-platform/pkg/logging"
)

const timeLayout = time.RFC3339

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Directory reads and updates doctor profiles in the users document table.
type Directory struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewDirectory builds a directory backed by the provided DynamoDB client.
func NewDirectory(client dynamoAPI, tableName string, logger *logging.Logger) *Directory {
	if client == nil {
		panic("doctors: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("doctors: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Directory{client: client, tableName: tableName, logger: logger}
}

type profileItem struct {
	ID              string `dynamodbav:"id"`
	Email           string `dynamodbav:"email"`
	Role            string `dynamodbav:"role"`
	Status          string `dynamodbav:"status"`
	FirstName       string `dynamodbav:"firstName"`
	LastName        string `dynamodbav:"lastName"`
	Specialty       string `dynamodbav:"specialty,omitempty"`
	LicenseNumber   string `dynamodbav:"licenseNumber,omitempty"`
	Experience      string `dynamodbav:"experience,omitempty"`
	Education       string `dynamodbav:"education,omitempty"`
	Bio             string `dynamodbav:"bio,omitempty"`
	CalendlyURL     string `dynamodbav:"calendlyUrl,omitempty"`
	ProfileImageURL string `dynamodbav:"profileImageUrl,omitempty"`
	CreatedAt       string `dynamodbav:"createdAt,omitempty"`
	UpdatedAt       string `dynamodbav:"updatedAt,omitempty"`
}

// ListActive returns every profile with role=doctor and status=active,
// unordered.
func (d *Directory) ListActive(ctx context.Context) ([]*Profile, error) {
	out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(d.tableName),
		FilterExpression: aws.String("#role = :doctor AND #status = :active"),
		ExpressionAttributeNames: map[string]string{
			"#role":   "role",
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":doctor": &types.AttributeValueMemberS{Value: "doctor"},
			":active": &types.AttributeValueMemberS{Value: string(StatusActive)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("doctors: failed to list active doctors: %w", err)
	}

	profiles := make([]*Profile, 0, len(out.Items))
	for _, raw := range out.Items {
		var item profileItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("doctors: failed to decode profile: %w", err)
		}
		profiles = append(profiles, fromItem(item))
	}
	return profiles, nil
}

// GetByID fetches a single profile.
func (d *Directory) GetByID(ctx context.Context, id string) (*Profile, error) {
	if id == "" {
		return nil, errors.New("doctors: id required")
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("doctors: failed to fetch profile: %w", err)
	}
	if out.Item == nil {
		return nil, ErrDoctorNotFound
	}

	var item profileItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("doctors: failed to decode profile: %w", err)
	}
	return fromItem(item), nil
}

// Update merges the given fields into the profile and refreshes the update
// instant. No field-level validation is applied.
func (d *Directory) Update(ctx context.Context, id string, params UpdateParams) error {
	if id == "" {
		return errors.New("doctors: id required")
	}

	sets := []string{"#updated = :updated"}
	names := map[string]string{"#updated": "updatedAt"}
	values := map[string]types.AttributeValue{
		":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(timeLayout)},
	}

	fields := []struct {
		attr  string
		value *string
	}{
		{"firstName", params.FirstName},
		{"lastName", params.LastName},
		{"specialty", params.Specialty},
		{"licenseNumber", params.LicenseNumber},
		{"experience", params.Experience},
		{"education", params.Education},
		{"bio", params.Bio},
		{"calendlyUrl", params.CalendlyURL},
		{"profileImageUrl", params.ProfileImageURL},
	}

	changed := false
	for i, f := range fields {
		if f.value == nil {
			continue
		}
		changed = true
		alias := fmt.Sprintf("#f%d", i)
		placeholder := fmt.Sprintf(":v%d", i)
		names[alias] = f.attr
		values[placeholder] = &types.AttributeValueMemberS{Value: *f.value}
		sets = append(sets, alias+" = "+placeholder)
	}
	if !changed {
		return ErrNoFields
	}

	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("doctors: failed to update profile %s: %w", id, err)
	}
	d.logger.Info("doctor profile updated", "doctor_id", id)
	return nil
}

// Apply promotes an account to role=doctor with status=pending. Approval to
// active happens through an administrative action outside this service.
func (d *Directory) Apply(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("doctors: id required")
	}

	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String("SET #role = :doctor, #status = :pending, #updated = :updated"),
		ExpressionAttributeNames: map[string]string{
			"#role":    "role",
			"#status":  "status",
			"#updated": "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":doctor":  &types.AttributeValueMemberS{Value: "doctor"},
			":pending": &types.AttributeValueMemberS{Value: string(StatusPending)},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(timeLayout)},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("doctors: failed to submit doctor application for %s: %w", id, err)
	}
	d.logger.Info("doctor application submitted", "user_id", id)
	return nil
}

func fromItem(item profileItem) *Profile {
	createdAt, _ := time.Parse(timeLayout, item.CreatedAt)
	updatedAt, _ := time.Parse(timeLayout, item.UpdatedAt)
	return &Profile{
		ID:              item.ID,
		Email:           item.Email,
		Role:            item.Role,
		Status:          ApprovalStatus(item.Status),
		FirstName:       item.FirstName,
		LastName:        item.LastName,
		Specialty:       item.Specialty,
		LicenseNumber:   item.LicenseNumber,
		Experience:      item.Experience,
		Education:       item.Education,
		Bio:             item.Bio,
		CalendlyURL:     item.CalendlyURL,
		ProfileImageURL: item.ProfileImageURL,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
}
