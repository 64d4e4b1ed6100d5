package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"betihari-backend/pkg/models"
)

// dynamoAPI is the subset of the DynamoDB client the interaction store uses.
type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoInteractionStore keeps interaction aggregates in a DynamoDB table keyed by story_id.
// Every mutation is a single conditional UpdateItem, so concurrent visitors never lose writes.
type DynamoInteractionStore struct {
	client    dynamoAPI
	tableName string
}

// NewDynamoInteractionStore loads the default AWS credential chain for region.
func NewDynamoInteractionStore(ctx context.Context, region, tableName string) (*DynamoInteractionStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newDynamoInteractionStore(dynamodb.NewFromConfig(cfg), tableName), nil
}

func newDynamoInteractionStore(client dynamoAPI, tableName string) *DynamoInteractionStore {
	return &DynamoInteractionStore{client: client, tableName: tableName}
}

func storyKey(storyID int64) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		"story_id": &dynamodbtypes.AttributeValueMemberN{Value: strconv.FormatInt(storyID, 10)},
	}
}

func activityValue(ev models.ActivityEvent) (dynamodbtypes.AttributeValue, error) {
	av, err := attributevalue.Marshal([]models.ActivityEvent{ev})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity event: %w", err)
	}
	return av, nil
}

var emptyList = &dynamodbtypes.AttributeValueMemberL{Value: []dynamodbtypes.AttributeValue{}}

// update runs a conditional UpdateItem. A failed condition reports (false, nil) when
// the item exists and ErrNotFound when it does not.
func (s *DynamoInteractionStore) update(ctx context.Context, in *dynamodb.UpdateItemInput) (bool, error) {
	in.TableName = aws.String(s.tableName)
	in.ReturnValuesOnConditionCheckFailure = dynamodbtypes.ReturnValuesOnConditionCheckFailureAllOld
	_, err := s.client.UpdateItem(ctx, in)
	if err == nil {
		return true, nil
	}
	var ccf *dynamodbtypes.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return false, models.ErrNotFound
		}
		return false, nil
	}
	return false, fmt.Errorf("failed to update interaction: %w", err)
}

func (s *DynamoInteractionStore) EnsureInteraction(ctx context.Context, storyID int64) (bool, error) {
	item, err := attributevalue.MarshalMap(models.NewInteraction(storyID))
	if err != nil {
		return false, fmt.Errorf("failed to marshal interaction: %w", err)
	}
	// DynamoDB has no empty sets; the first ADD creates the likes attribute.
	delete(item, "likes")
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(story_id)"),
	})
	var ccf *dynamodbtypes.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create interaction: %w", err)
	}
	return true, nil
}

func (s *DynamoInteractionStore) GetInteraction(ctx context.Context, storyID int64) (*models.Interaction, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            storyKey(storyID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}
	if out.Item == nil {
		return nil, models.ErrNotFound
	}
	return unmarshalInteraction(out.Item)
}

func unmarshalInteraction(item map[string]dynamodbtypes.AttributeValue) (*models.Interaction, error) {
	it := models.NewInteraction(0)
	if err := attributevalue.UnmarshalMap(item, it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interaction: %w", err)
	}
	if it.Likes == nil {
		it.Likes = []string{}
	}
	if it.Comments == nil {
		it.Comments = []models.Comment{}
	}
	if it.ActivityLog == nil {
		it.ActivityLog = []models.ActivityEvent{}
	}
	return it, nil
}

func (s *DynamoInteractionStore) ListInteractions(ctx context.Context) ([]models.Interaction, error) {
	items := []models.Interaction{}
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{TableName: aws.String(s.tableName)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interactions: %w", err)
		}
		for _, raw := range page.Items {
			it, err := unmarshalInteraction(raw)
			if err != nil {
				return nil, err
			}
			items = append(items, *it)
		}
	}
	return items, nil
}

func (s *DynamoInteractionStore) AddLike(ctx context.Context, storyID int64, userKey string, ev models.ActivityEvent) (bool, error) {
	evAV, err := activityValue(ev)
	if err != nil {
		return false, err
	}
	return s.update(ctx, &dynamodb.UpdateItemInput{
		Key:                 storyKey(storyID),
		UpdateExpression:    aws.String("ADD likes :keyset SET activityLog = list_append(if_not_exists(activityLog, :empty), :ev)"),
		ConditionExpression: aws.String("attribute_exists(story_id) AND NOT contains(likes, :key)"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":keyset": &dynamodbtypes.AttributeValueMemberSS{Value: []string{userKey}},
			":key":    &dynamodbtypes.AttributeValueMemberS{Value: userKey},
			":empty":  emptyList,
			":ev":     evAV,
		},
	})
}

func (s *DynamoInteractionStore) RemoveLike(ctx context.Context, storyID int64, userKey string, ev models.ActivityEvent) (bool, error) {
	evAV, err := activityValue(ev)
	if err != nil {
		return false, err
	}
	return s.update(ctx, &dynamodb.UpdateItemInput{
		Key:                 storyKey(storyID),
		UpdateExpression:    aws.String("DELETE likes :keyset SET activityLog = list_append(if_not_exists(activityLog, :empty), :ev)"),
		ConditionExpression: aws.String("contains(likes, :key)"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":keyset": &dynamodbtypes.AttributeValueMemberSS{Value: []string{userKey}},
			":key":    &dynamodbtypes.AttributeValueMemberS{Value: userKey},
			":empty":  emptyList,
			":ev":     evAV,
		},
	})
}

func (s *DynamoInteractionStore) AddComment(ctx context.Context, storyID int64, comment models.Comment, ev models.ActivityEvent) error {
	evAV, err := activityValue(ev)
	if err != nil {
		return err
	}
	commentAV, err := attributevalue.Marshal([]models.Comment{comment})
	if err != nil {
		return fmt.Errorf("failed to marshal comment: %w", err)
	}
	_, err = s.update(ctx, &dynamodb.UpdateItemInput{
		Key: storyKey(storyID),
		UpdateExpression: aws.String("SET comments = list_append(if_not_exists(comments, :empty), :comment), " +
			"activityLog = list_append(if_not_exists(activityLog, :empty), :ev)"),
		ConditionExpression: aws.String("attribute_exists(story_id)"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":comment": commentAV,
			":empty":   emptyList,
			":ev":      evAV,
		},
	})
	return err
}

func (s *DynamoInteractionStore) IncrementCounter(ctx context.Context, storyID int64, counter models.Counter, ev models.ActivityEvent) error {
	if counter != models.CounterViews && counter != models.CounterShares {
		return fmt.Errorf("counter %q: %w", counter, models.ErrInvalidInput)
	}
	evAV, err := activityValue(ev)
	if err != nil {
		return err
	}
	_, err = s.update(ctx, &dynamodb.UpdateItemInput{
		Key:                      storyKey(storyID),
		UpdateExpression:         aws.String("ADD #counter :one SET activityLog = list_append(if_not_exists(activityLog, :empty), :ev)"),
		ConditionExpression:      aws.String("attribute_exists(story_id)"),
		ExpressionAttributeNames: map[string]string{"#counter": string(counter)},
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":one":   &dynamodbtypes.AttributeValueMemberN{Value: "1"},
			":empty": emptyList,
			":ev":    evAV,
		},
	})
	return err
}

func (s *DynamoInteractionStore) DeleteInteraction(ctx context.Context, storyID int64) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       storyKey(storyID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete interaction: %w", err)
	}
	return nil
}
