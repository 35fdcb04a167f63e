package dynamostore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// fakeDynamo is an in-memory DynamoDB that evaluates the small expression grammar
// the store emits: "a = :v", attribute_exists(a), attribute_not_exists(a), joined by AND.
type fakeDynamo struct {
	mu     sync.Mutex
	keys   map[string]string
	tables map[string]map[string]item

	// beforeWrite runs with the lock released just before a conditional write is
	// evaluated, letting tests interleave a competing writer.
	beforeWrite func()
	transacts   int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		keys:   map[string]string{"orders": "id", "globals": "name", "users": "username"},
		tables: map[string]map[string]item{"orders": {}, "globals": {}, "users": {}},
	}
}

var testTables = Tables{Orders: "orders", Globals: "globals", Users: "users"}

func (f *fakeDynamo) keyOf(table string, it item) string {
	v, ok := it[f.keys[table]].(*types.AttributeValueMemberS)
	if !ok {
		panic(fmt.Sprintf("table %s: item has no string key %q", table, f.keys[table]))
	}
	return v.Value
}

func (f *fakeDynamo) hook() {
	if f.beforeWrite != nil {
		h := f.beforeWrite
		f.beforeWrite = nil
		h()
	}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dyn.GetItemInput, _ ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	return &dyn.GetItemOutput{Item: clone(f.tables[table][f.keyOf(table, in.Key)])}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dyn.PutItemInput, _ ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.hook()
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	key := f.keyOf(table, in.Item)
	if !eval(aws.ToString(in.ConditionExpression), f.tables[table][key], in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.tables[table][key] = clone(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dyn.UpdateItemInput, _ ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.hook()
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	key := f.keyOf(table, in.Key)
	current := f.tables[table][key]
	if !eval(aws.ToString(in.ConditionExpression), current, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	next := clone(current)
	if next == nil {
		next = clone(in.Key)
	}
	for _, assignment := range strings.Split(strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET "), ",") {
		parts := strings.SplitN(assignment, "=", 2)
		next[name(strings.TrimSpace(parts[0]), in.ExpressionAttributeNames)] = in.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
	}
	f.tables[table][key] = next
	return &dyn.UpdateItemOutput{Attributes: clone(next)}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dyn.DeleteItemInput, _ ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	f.hook()
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	key := f.keyOf(table, in.Key)
	if !eval(aws.ToString(in.ConditionExpression), f.tables[table][key], in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	delete(f.tables[table], key)
	return &dyn.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dyn.TransactWriteItemsInput, _ ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.hook()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transacts++
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		reasons[i].Code = aws.String("None")
		p := ti.Put
		table := aws.ToString(p.TableName)
		if !eval(aws.ToString(p.ConditionExpression), f.tables[table][f.keyOf(table, p.Item)], p.ExpressionAttributeNames, p.ExpressionAttributeValues) {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{Message: aws.String("Transaction cancelled"), CancellationReasons: reasons}
	}
	for _, ti := range in.TransactItems {
		table := aws.ToString(ti.Put.TableName)
		f.tables[table][f.keyOf(table, ti.Put.Item)] = clone(ti.Put.Item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// Scan returns at most two items per page so callers must follow LastEvaluatedKey.
func (f *fakeDynamo) Scan(_ context.Context, in *dyn.ScanInput, _ ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	var keys []string
	for k := range f.tables[table] {
		keys = append(keys, k)
	}
	sortKeys(keys)
	start := 0
	if in.ExclusiveStartKey != nil {
		after := f.keyOf(table, in.ExclusiveStartKey)
		for start < len(keys) && keys[start] <= after {
			start++
		}
	}
	end := start + 2
	if end > len(keys) {
		end = len(keys)
	}
	out := &dyn.ScanOutput{}
	for _, k := range keys[start:end] {
		it := f.tables[table][k]
		if eval(aws.ToString(in.FilterExpression), it, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
			out.Items = append(out.Items, clone(it))
		}
	}
	if end < len(keys) {
		out.LastEvaluatedKey = item{f.keys[table]: &types.AttributeValueMemberS{Value: keys[end-1]}}
	}
	return out, nil
}

// sortKeys orders numeric strings numerically, then lexically.
func sortKeys(keys []string) {
	less := func(a, b string) bool {
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && less(keys[j], keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}

func eval(expr string, it item, names map[string]string, values map[string]types.AttributeValue) bool {
	if expr == "" {
		return true
	}
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_exists("):
			attr := name(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_exists("), ")"), names)
			if _, ok := it[attr]; !ok {
				return false
			}
		case strings.HasPrefix(clause, "attribute_not_exists("):
			attr := name(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_not_exists("), ")"), names)
			if _, ok := it[attr]; ok {
				return false
			}
		default:
			parts := strings.SplitN(clause, "=", 2)
			if len(parts) != 2 {
				panic("unsupported expression: " + clause)
			}
			got, ok := it[name(strings.TrimSpace(parts[0]), names)]
			if !ok || !equal(got, values[strings.TrimSpace(parts[1])]) {
				return false
			}
		}
	}
	return true
}

func name(attr string, names map[string]string) string {
	if n, ok := names[attr]; ok {
		return n
	}
	return attr
}

func equal(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	default:
		return false
	}
}

func clone(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}
