package sqlinline

// QDebitCredits only matches when the balance covers the amount, so the
// check and the decrement are one atomic statement.
const QDebitCredits = `--sql 984a8588-10cc-47b4-821f-2f50533e6da1
update credit_balances
set balance = balance - $3::int,
    updated_at = now()
where user_id = $1::text
  and key_id = $2::text
  and balance >= $3::int
returning balance;
`

const QCreditCredits = `--sql 86caeee1-aa7d-4e6d-982b-50d26a959462
insert into credit_balances (user_id, key_id, balance, updated_at)
values ($1::text, $2::text, $3::int, now())
on conflict (user_id, key_id) do update set
    balance = credit_balances.balance + excluded.balance,
    updated_at = now()
returning balance;
`

const QSelectCreditBalance = `--sql b25e5684-8708-448b-a434-795f38d0d9ba
select balance
from credit_balances
where user_id = $1::text
  and key_id = $2::text;
`
