package sqlstore_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers/devkit"
	sqlstore "github.com/goliatone/go-gateways/store/sql"
	"github.com/goliatone/go-gateways/webhooks"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"gateway_transactions",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "gateway_transactions" {
		t.Fatalf("expected gateway_transactions table, got %q", tableName)
	}
}

func TestTransactionStore_RecordGetAndList(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.Store()

	recorded, err := store.Record(ctx, core.Transaction{
		ProviderID:    "cardnet",
		Action:        core.ActionPurchase,
		Success:       true,
		Message:       "Transaction Approved",
		Authorization: "013140",
		Test:          true,
		Amount:        "1.00",
		Currency:      "dop",
		OrderID:       "order-1",
		Steps:         []string{"authorize", "capture"},
		Raw:           map[string]any{"response-code": "00"},
		Transcript:    `<- "{\"card-number\":\"[FILTERED]\"}"`,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if recorded.ID == "" {
		t.Fatalf("expected generated id")
	}
	if recorded.Currency != "DOP" {
		t.Fatalf("expected normalized currency, got %q", recorded.Currency)
	}

	if _, err := store.Record(ctx, core.Transaction{
		ProviderID: "cardnet",
		Action:     core.ActionVoid,
		Success:    false,
		Message:    "amount: must be greater than 0",
		ErrorCode:  "amount: must be greater than 0",
		Amount:     "0",
		OrderID:    "order-1",
	}); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if _, err := store.Record(ctx, core.Transaction{
		ProviderID: "epayco",
		Action:     core.ActionPurchase,
		Success:    true,
		Amount:     "20.00",
		Currency:   "COP",
	}); err != nil {
		t.Fatalf("record epayco: %v", err)
	}

	fetched, err := store.Get(ctx, recorded.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Authorization != "013140" || !fetched.Success || fetched.Action != core.ActionPurchase {
		t.Fatalf("unexpected fetched transaction %+v", fetched)
	}
	if len(fetched.Steps) != 2 || fetched.Steps[1] != "capture" {
		t.Fatalf("unexpected steps %v", fetched.Steps)
	}
	if fetched.Raw["response-code"] != "00" {
		t.Fatalf("unexpected raw %v", fetched.Raw)
	}

	page, err := store.List(ctx, core.TransactionFilter{ProviderID: "cardnet"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected two cardnet transactions, got total=%d items=%d", page.Total, len(page.Items))
	}

	failed := false
	page, err = store.List(ctx, core.TransactionFilter{Success: &failed})
	if err != nil {
		t.Fatalf("list failures: %v", err)
	}
	if page.Total != 1 || page.Items[0].Action != core.ActionVoid {
		t.Fatalf("expected the failed void, got %+v", page)
	}

	page, err = store.List(ctx, core.TransactionFilter{Authorization: "013140"})
	if err != nil {
		t.Fatalf("list by authorization: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != recorded.ID {
		t.Fatalf("expected lookup by authorization, got %+v", page)
	}

	page, err = store.List(ctx, core.TransactionFilter{Limit: 1})
	if err != nil {
		t.Fatalf("list paginated: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 1 {
		t.Fatalf("expected total=3 with one item, got total=%d items=%d", page.Total, len(page.Items))
	}
}

func TestTransactionStore_GetMissingReturnsNotFound(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewTransactionStore(client.DB())
	if err != nil {
		t.Fatalf("new transaction store: %v", err)
	}
	_, err = store.Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransactionStore_RejectsInvalidAction(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewTransactionStore(client.DB())
	if err != nil {
		t.Fatalf("new transaction store: %v", err)
	}
	if _, err := store.Record(context.Background(), core.Transaction{ProviderID: "cardnet", Action: "settle"}); err == nil {
		t.Fatalf("expected invalid action error")
	}
}

func TestCachedTransactionStore_ServesRepeatReadsFromCache(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	cacheService, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithTransactionCache(cacheService))
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	if _, ok := factory.Store().(*sqlstore.CachedTransactionStore); !ok {
		t.Fatalf("expected cached store, got %T", factory.Store())
	}

	recorded, err := factory.Store().Record(ctx, core.Transaction{
		ProviderID: "hsbc",
		Action:     core.ActionAuthorize,
		Success:    true,
		Amount:     "1.00",
		Currency:   "HKD",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := factory.Store().Get(ctx, recorded.ID); err != nil {
		t.Fatalf("first get: %v", err)
	}

	if _, err := client.DB().NewDelete().
		TableExpr("gateway_transactions").
		Where("id = ?", recorded.ID).
		Exec(ctx); err != nil {
		t.Fatalf("delete row: %v", err)
	}
	cached, err := factory.Store().Get(ctx, recorded.ID)
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if cached.ID != recorded.ID {
		t.Fatalf("expected cached transaction, got %+v", cached)
	}
	if _, err := factory.TransactionStore().Get(ctx, recorded.ID); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("expected base store miss after delete, got %v", err)
	}
}

func TestTransactionCacheKey_Contract(t *testing.T) {
	key, err := sqlstore.TransactionCacheKey(" txn/1 ")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if key != "go-gateways::transaction::v1::txn%2F1" {
		t.Fatalf("unexpected cache key %q", key)
	}
	if _, err := sqlstore.TransactionCacheKey(" "); err == nil {
		t.Fatalf("expected empty id error")
	}
}

func TestServiceRecordsThroughRepositoryFactory(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	fake := devkit.NewFakeREST(devkit.Reply(200, `{"ok":true}`))
	gateway := devkit.NewScriptedGateway("acme", fake)
	svc, err := core.NewService(core.DefaultConfig(),
		core.WithPersistenceClient(client),
		core.WithRepositoryFactory(sqlstore.NewRepositoryFactory()),
		core.WithGateways(gateway),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.Purchase(ctx, devkit.TokenRequest("acme", 500, "USD", "tok_1"))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if result.TransactionID == "" {
		t.Fatalf("expected recorded transaction id")
	}
	txn, err := svc.GetTransaction(ctx, result.TransactionID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if txn.ProviderID != "acme" || txn.Amount != "5.00" || !txn.Success {
		t.Fatalf("unexpected stored transaction %+v", txn)
	}
}

func TestDeliveryLedger_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	ledger := factory.DeliveryLedger()

	first, claimed, err := ledger.Claim(ctx, "SimplePay", "99325369:finished", []byte(`{}`), time.Minute)
	if err != nil || !claimed {
		t.Fatalf("expected first claim, got claimed=%v err=%v", claimed, err)
	}
	if first.Status != webhooks.DeliveryStatusProcessing || first.Attempts != 1 || first.ProviderID != "simplepay" {
		t.Fatalf("unexpected first claim %+v", first)
	}
	if _, claimed, err := ledger.Claim(ctx, "simplepay", "99325369:finished", nil, time.Minute); err != nil || claimed {
		t.Fatalf("expected leased delivery to stay unclaimed, got claimed=%v err=%v", claimed, err)
	}

	next := time.Now().UTC().Add(time.Second)
	if err := ledger.Fail(ctx, first.ClaimID, errors.New("store down"), next, 3); err != nil {
		t.Fatalf("fail: %v", err)
	}
	failed, err := ledger.Get(ctx, "simplepay", "99325369:finished")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if failed.Status != webhooks.DeliveryStatusRetryReady || failed.LastError != "store down" || failed.NextAttemptAt == nil {
		t.Fatalf("unexpected failed delivery %+v", failed)
	}

	second, claimed, err := ledger.Claim(ctx, "simplepay", "99325369:finished", nil, time.Minute)
	if err != nil || !claimed {
		t.Fatalf("expected retry claim, got claimed=%v err=%v", claimed, err)
	}
	if second.Attempts != 2 || second.ClaimID == first.ClaimID {
		t.Fatalf("unexpected retry claim %+v", second)
	}
	if err := ledger.Complete(ctx, first.ClaimID); err == nil {
		t.Fatalf("expected stale claim to be rejected")
	}
	if err := ledger.Complete(ctx, second.ClaimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	done, _, err := ledger.Claim(ctx, "simplepay", "99325369:finished", nil, time.Minute)
	if err != nil || done.Status != webhooks.DeliveryStatusProcessed {
		t.Fatalf("expected processed delivery, got %+v %v", done, err)
	}
}

func TestDeliveryLedger_DeadAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	ledger, err := sqlstore.NewDeliveryLedger(client.DB())
	if err != nil {
		t.Fatalf("new delivery ledger: %v", err)
	}
	record, _, err := ledger.Claim(ctx, "epayco", "8423476:1", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := ledger.Fail(ctx, record.ClaimID, errors.New("boom"), time.Now(), 1); err != nil {
		t.Fatalf("fail: %v", err)
	}
	dead, err := ledger.Get(ctx, "epayco", "8423476:1")
	if err != nil || dead.Status != webhooks.DeliveryStatusDead {
		t.Fatalf("expected dead delivery, got %+v %v", dead, err)
	}
	if _, claimed, _ := ledger.Claim(ctx, "epayco", "8423476:1", nil, time.Minute); claimed {
		t.Fatalf("expected dead delivery to stay unclaimed")
	}
}

func TestNotificationProcessor_RecordsThroughSQLStore(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	processor := webhooks.NewEPaycoTemplate("12345", "p_key_abc").Processor(factory.DeliveryLedger(), factory.Store())
	form := url.Values{
		"x_ref_payco":      {"8423476"},
		"x_transaction_id": {"1"},
		"x_amount":         {"50000"},
		"x_currency_code":  {"COP"},
		"x_cod_response":   {"3"},
		"x_response":       {"Pendiente"},
	}
	sum := sha256.Sum256([]byte("12345^p_key_abc^8423476^1^50000^COP"))
	form.Set("x_signature", hex.EncodeToString(sum[:]))
	body := []byte(form.Encode())

	for i := 0; i < 2; i++ {
		if _, err := processor.Process(ctx, webhooks.Notification{ProviderID: "epayco", Body: body}); err != nil {
			t.Fatalf("process confirmation %d: %v", i+1, err)
		}
	}
	page, err := factory.Store().List(ctx, core.TransactionFilter{ProviderID: "epayco"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one recorded confirmation, got %d", page.Total)
	}
	txn := page.Items[0]
	if txn.Success || txn.ErrorCode != "3" || txn.Message != "Pendiente" || txn.Amount != "50000.00" {
		t.Fatalf("unexpected transaction %+v", txn)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()
	dsn := fmt.Sprintf(
		"file:gateways-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	client, err := sqlstore.Open(context.Background(), sqlstore.OpenConfig{
		Driver: sqlstore.DriverSQLite,
		DSN:    dsn,
	})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	return client, func() {
		_ = client.Close()
	}
}
