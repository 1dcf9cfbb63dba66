// Package dynamo adapts store.KVStore onto Amazon DynamoDB, in the
// same style as the teacher's internal/repo/dynamodb.go: a thin client
// wrapper that marshals store.Item maps with
// aws-sdk-go-v2/feature/dynamodb/attributevalue and translates the
// store package's adapter-agnostic Predicate/Mutation vocabulary into
// DynamoDB condition and update expressions.
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/traffictacos/ticketing-core/internal/store"
)

// Adapter implements store.KVStore against a live DynamoDB client. One
// Adapter serves every table named in spec.md §6; table names are
// passed per-call, matching the interface, rather than baked into the
// struct as the teacher's DynamoDBRepository did for its two tables.
type Adapter struct {
	client *dynamodb.Client
}

// New wraps an already-configured DynamoDB client.
func New(client *dynamodb.Client) *Adapter {
	return &Adapter{client: client}
}

func toAttrMap(item store.Item) (map[string]types.AttributeValue, error) {
	out, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("dynamo: marshal: %w", err)
	}
	return out, nil
}

func fromAttrMap(m map[string]types.AttributeValue) (store.Item, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := store.Item{}
	if err := attributevalue.UnmarshalMap(m, &out); err != nil {
		return nil, fmt.Errorf("dynamo: unmarshal: %w", err)
	}
	return out, nil
}

func (a *Adapter) Get(ctx context.Context, table string, key store.Item) (store.Item, error) {
	k, err := toAttrMap(key)
	if err != nil {
		return nil, err
	}
	res, err := a.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo: get %s: %w", table, err)
	}
	return fromAttrMap(res.Item)
}

func (a *Adapter) Put(ctx context.Context, table string, item store.Item) error {
	av, err := toAttrMap(item)
	if err != nil {
		return err
	}
	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("dynamo: put %s: %w", table, err)
	}
	return nil
}

func (a *Adapter) PutIf(ctx context.Context, table string, item store.Item, cond store.Predicate) error {
	av, err := toAttrMap(item)
	if err != nil {
		return err
	}
	expr, values, names, err := compilePredicate(cond, item)
	if err != nil {
		return err
	}
	input := &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      av,
	}
	if expr != "" {
		input.ConditionExpression = aws.String(expr)
		input.ExpressionAttributeValues = values
		input.ExpressionAttributeNames = names
	}
	_, err = a.client.PutItem(ctx, input)
	if isConditionalCheckFailed(err) {
		return store.ErrPreconditionFailed
	}
	if err != nil {
		return fmt.Errorf("dynamo: put_if %s: %w", table, err)
	}
	return nil
}

func (a *Adapter) UpdateIf(ctx context.Context, table string, key store.Item, mut store.Mutation, cond store.Predicate) error {
	k, err := toAttrMap(key)
	if err != nil {
		return err
	}
	updateExpr, uValues, uNames, err := compileMutation(mut)
	if err != nil {
		return err
	}
	condExpr, cValues, cNames, err := compilePredicate(cond, key)
	if err != nil {
		return err
	}

	values := mergeAV(uValues, cValues)
	names := mergeStr(uNames, cNames)

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       k,
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeValues: values,
		ExpressionAttributeNames:  names,
	}
	if condExpr != "" {
		input.ConditionExpression = aws.String(condExpr)
	}
	_, err = a.client.UpdateItem(ctx, input)
	if isConditionalCheckFailed(err) {
		return store.ErrPreconditionFailed
	}
	if err != nil {
		return fmt.Errorf("dynamo: update_if %s: %w", table, err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, table string, key store.Item) error {
	k, err := toAttrMap(key)
	if err != nil {
		return err
	}
	_, err = a.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       k,
	})
	if err != nil {
		return fmt.Errorf("dynamo: delete %s: %w", table, err)
	}
	return nil
}

func (a *Adapter) Query(ctx context.Context, table, index string, keyCond store.Predicate, filter store.Predicate) (store.Page, error) {
	expr, values, names, err := compileKeyCondition(keyCond)
	if err != nil {
		return store.Page{}, err
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    aws.String(expr),
		ExpressionAttributeValues: values,
		ExpressionAttributeNames:  names,
	}
	if index != "" {
		input.IndexName = aws.String(index)
	}
	if filter != nil {
		fExpr, fValues, fNames, ferr := compilePredicate(filter, nil)
		if ferr != nil {
			return store.Page{}, ferr
		}
		if fExpr != "" {
			input.FilterExpression = aws.String(fExpr)
			input.ExpressionAttributeValues = mergeAV(input.ExpressionAttributeValues, fValues)
			input.ExpressionAttributeNames = mergeStr(input.ExpressionAttributeNames, fNames)
		}
	}
	res, err := a.client.Query(ctx, input)
	if err != nil {
		return store.Page{}, fmt.Errorf("dynamo: query %s: %w", table, err)
	}
	return pageFromItems(res.Items)
}

func (a *Adapter) Scan(ctx context.Context, table string, filter store.Predicate) (store.Page, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(table)}
	if filter != nil {
		fExpr, fValues, fNames, err := compilePredicate(filter, nil)
		if err != nil {
			return store.Page{}, err
		}
		if fExpr != "" {
			input.FilterExpression = aws.String(fExpr)
			input.ExpressionAttributeValues = fValues
			input.ExpressionAttributeNames = fNames
		}
	}
	res, err := a.client.Scan(ctx, input)
	if err != nil {
		return store.Page{}, fmt.Errorf("dynamo: scan %s: %w", table, err)
	}
	return pageFromItems(res.Items)
}

func pageFromItems(rows []map[string]types.AttributeValue) (store.Page, error) {
	items := make([]store.Item, 0, len(rows))
	for _, r := range rows {
		it, err := fromAttrMap(r)
		if err != nil {
			return store.Page{}, err
		}
		items = append(items, it)
	}
	return store.Page{Items: items}, nil
}

// TransactWrite performs an atomic multi-row commit, the mechanism the
// seat-assignment protocol relies on for its uniqueness gate
// (spec.md §4.2). Either every item commits or none do; a cancelled
// transaction surfaces per-item reasons as store.TransactCancelled.
func (a *Adapter) TransactWrite(ctx context.Context, items []store.TransactItem) error {
	txItems := make([]types.TransactWriteItem, 0, len(items))
	for _, it := range items {
		if it.Item != nil {
			av, err := toAttrMap(it.Item)
			if err != nil {
				return err
			}
			expr, values, names, err := compilePredicate(it.Cond, it.Item)
			if err != nil {
				return err
			}
			put := &types.Put{TableName: aws.String(it.Table), Item: av}
			if expr != "" {
				put.ConditionExpression = aws.String(expr)
				put.ExpressionAttributeValues = values
				put.ExpressionAttributeNames = names
			}
			txItems = append(txItems, types.TransactWriteItem{Put: put})
			continue
		}

		k, err := toAttrMap(it.Key)
		if err != nil {
			return err
		}
		updateExpr, uValues, uNames, err := compileMutation(it.Mut)
		if err != nil {
			return err
		}
		condExpr, cValues, cNames, err := compilePredicate(it.Cond, it.Key)
		if err != nil {
			return err
		}
		update := &types.Update{
			TableName:                 aws.String(it.Table),
			Key:                       k,
			UpdateExpression:          aws.String(updateExpr),
			ExpressionAttributeValues: mergeAV(uValues, cValues),
			ExpressionAttributeNames:  mergeStr(uNames, cNames),
		}
		if condExpr != "" {
			update.ConditionExpression = aws.String(condExpr)
		}
		txItems = append(txItems, types.TransactWriteItem{Update: update})
	}

	_, err := a.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: txItems})
	if err == nil {
		return nil
	}

	var cancelled *types.TransactionCanceledException
	if as(err, &cancelled) {
		reasons := make([]error, len(cancelled.CancellationReasons))
		for i, r := range cancelled.CancellationReasons {
			if r.Code != nil && *r.Code != "None" {
				reasons[i] = fmt.Errorf("%s", aws.ToString(r.Code))
			}
		}
		return &store.TransactCancelled{Reasons: reasons}
	}
	return fmt.Errorf("dynamo: transact_write: %w", err)
}
