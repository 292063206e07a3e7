package rpcclient

// Godwoken JSON-RPC method names (spec §4.1/§6), named as constants the
// way the teacher names its engine-API methods
// (cl/phase1/execution_client/rpc_helper/methods.go).
const (
	MethodGetTipBlockHash        = "gw_get_tip_block_hash"
	MethodGetBlockHash           = "gw_get_block_hash"
	MethodGetBlockByNumber       = "gw_get_block_by_number"
	MethodGetScriptHash          = "gw_get_script_hash"
	MethodGetScript              = "gw_get_script"
	MethodGetTransactionReceipt  = "gw_get_transaction_receipt"
)
