package database

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betihari-backend/pkg/models"
)

type fakeDynamo struct {
	puts    []*dynamodb.PutItemInput
	updates []*dynamodb.UpdateItemInput
	item    map[string]dynamodbtypes.AttributeValue
	pages   [][]map[string]dynamodbtypes.AttributeValue
	putErr  error
	updErr  error
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.item}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, f.updErr
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	page := 0
	if in.ExclusiveStartKey != nil {
		page = 1
	}
	out := &dynamodb.ScanOutput{Items: f.pages[page]}
	if page+1 < len(f.pages) {
		out.LastEvaluatedKey = storyKey(-1)
	}
	return out, nil
}

func TestDynamo_EnsureInteraction(t *testing.T) {
	fake := &fakeDynamo{}
	store := newDynamoInteractionStore(fake, "story_interactions")

	created, err := store.EnsureInteraction(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "attribute_not_exists(story_id)", aws.ToString(fake.puts[0].ConditionExpression))
	assert.NotContains(t, fake.puts[0].Item, "likes")
	assert.IsType(t, &dynamodbtypes.AttributeValueMemberL{}, fake.puts[0].Item["comments"])
	assert.IsType(t, &dynamodbtypes.AttributeValueMemberL{}, fake.puts[0].Item["activityLog"])

	it, err := unmarshalInteraction(fake.puts[0].Item)
	require.NoError(t, err)
	assert.Equal(t, []string{}, it.Likes)
	assert.Equal(t, int64(4), it.StoryID)

	fake.putErr = &dynamodbtypes.ConditionalCheckFailedException{Message: aws.String("exists")}
	created, err = store.EnsureInteraction(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDynamo_AddLike_ConditionOutcomes(t *testing.T) {
	ev := models.ActivityEvent{Type: models.ActivityLike, StoryID: 1, UserKey: "k"}
	existing, err := attributevalue.MarshalMap(models.NewInteraction(1))
	require.NoError(t, err)

	cases := []struct {
		name    string
		updErr  error
		want    bool
		wantErr error
	}{
		{name: "added", want: true},
		{name: "already liked", updErr: &dynamodbtypes.ConditionalCheckFailedException{Item: existing}},
		{name: "missing aggregate", updErr: &dynamodbtypes.ConditionalCheckFailedException{}, wantErr: models.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeDynamo{updErr: tc.updErr}
			store := newDynamoInteractionStore(fake, "t")

			added, err := store.AddLike(context.Background(), 1, "k", ev)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, added)
			require.Len(t, fake.updates, 1)
			assert.Contains(t, aws.ToString(fake.updates[0].UpdateExpression), "ADD likes :keyset")
		})
	}
}

func TestDynamo_UpdateError(t *testing.T) {
	fake := &fakeDynamo{updErr: errors.New("throttled")}
	store := newDynamoInteractionStore(fake, "t")

	err := store.AddComment(context.Background(), 1, models.Comment{ID: "c"}, models.ActivityEvent{Type: models.ActivityComment})
	assert.ErrorContains(t, err, "throttled")
}

func TestDynamo_IncrementCounter(t *testing.T) {
	fake := &fakeDynamo{}
	store := newDynamoInteractionStore(fake, "t")

	require.NoError(t, store.IncrementCounter(context.Background(), 1, models.CounterShares, models.ActivityEvent{Type: models.ActivityShare}))
	require.Len(t, fake.updates, 1)
	assert.Equal(t, "shares", fake.updates[0].ExpressionAttributeNames["#counter"])

	err := store.IncrementCounter(context.Background(), 1, models.Counter("likes"), models.ActivityEvent{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestDynamo_GetAndList(t *testing.T) {
	it := models.NewInteraction(2)
	it.Likes = []string{"a"}
	it.Views = 3
	item, err := attributevalue.MarshalMap(it)
	require.NoError(t, err)

	other, err := attributevalue.MarshalMap(models.NewInteraction(3))
	require.NoError(t, err)

	fake := &fakeDynamo{item: item, pages: [][]map[string]dynamodbtypes.AttributeValue{{item}, {other}}}
	store := newDynamoInteractionStore(fake, "t")

	got, err := store.GetInteraction(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Likes)
	assert.EqualValues(t, 3, got.Views)

	all, err := store.ListInteractions(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Empty(t, all[1].Likes)

	fake.item = nil
	_, err = store.GetInteraction(context.Background(), 2)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
